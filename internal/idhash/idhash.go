package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ComputeEventID returns the graph id of the event a post initiated for a pattern.
// Format: <pattern>_<post_id>.
func ComputeEventID(pattern, postID string) string {
	return pattern + "_" + postID
}

// ComputeSignalID computes a deterministic signal id using SHA256.
// Formula: SHA256(post_id|sorted coins joined by ,|confidence rounded to 2 decimals)
// Returns hex-encoded hash (64 characters). Used as the broker dedupe key.
func ComputeSignalID(postID string, coins []string, confidence float64) string {
	sorted := append([]string(nil), coins...)
	sort.Strings(sorted)

	data := fmt.Sprintf("%s|%s|%.2f", postID, strings.Join(sorted, ","), confidence)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

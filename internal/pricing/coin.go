package pricing

import (
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// CoinKind tells how a coin identifier should be resolved.
type CoinKind int

const (
	// CoinSymbol is a ticker such as "DOGE", resolved by search.
	CoinSymbol CoinKind = iota
	// CoinMint is a Solana token mint address, resolved directly.
	CoinMint
)

// Coin is a parsed coin identifier.
type Coin struct {
	Raw  string
	Kind CoinKind
}

// ParseCoin classifies s. A string decoding to a 32-byte ed25519 point is a mint;
// anything else is a symbol. Symbols are upper-cased with a leading '$' removed.
func ParseCoin(s string) Coin {
	s = strings.TrimSpace(s)
	if isMintAddress(s) {
		return Coin{Raw: s, Kind: CoinMint}
	}
	return Coin{Raw: strings.ToUpper(strings.TrimPrefix(s, "$")), Kind: CoinSymbol}
}

// ExtractMints returns the distinct mint addresses embedded in text, in order of
// first appearance.
func ExtractMints(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, isNotBase58) {
		if _, dup := seen[tok]; dup || !isMintAddress(tok) {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func isNotBase58(r rune) bool {
	return !strings.ContainsRune(base58Alphabet, r)
}

func isMintAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}

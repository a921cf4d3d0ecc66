package inference

import (
	"regexp"
	"strconv"
	"strings"

	"memecoin-signal-lab/internal/domain"
)

// Response is the structured form of a completion.
type Response struct {
	Names      []string // raw, un-normalized
	Reasoning  string
	Confidence float64 // clamped to [0,100]
	Category   domain.Category
}

// Section contract with the model. Each section starts a line, markers are
// case-insensitive and may be wrapped in markdown bold:
//
//	NAMES: [A, B, C]        brackets optional
//	REASONING: free text    may span lines until the next marker
//	CONFIDENCE: 85          first number; "85%" and "85.5" accepted
//	CATEGORY: vip_related   first word
//
// Missing sections default to empty names, empty reasoning, confidence 0 and
// category other. A whitespace-only response fails with ErrEmptyResponse.
var (
	sectionRe    = regexp.MustCompile(`(?im)^[ \t*_#]*(NAMES|REASONING|CONFIDENCE|CATEGORY)[ \t*_]*:[ \t*_]*`)
	numberRe     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	wordRe       = regexp.MustCompile(`[A-Za-z_]+`)
	bracketedRe  = regexp.MustCompile(`^\[(.*?)\]`)
	nameSplitter = regexp.MustCompile(`[,\n]`)
)

// ParseResponse parses a completion according to the section contract above.
func ParseResponse(text string) (*Response, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	sections := splitSections(text)
	resp := &Response{Category: domain.CategoryOther}

	if names, ok := sections["NAMES"]; ok {
		resp.Names = parseNames(names)
	}
	if reasoning, ok := sections["REASONING"]; ok {
		resp.Reasoning = strings.TrimSpace(reasoning)
	}
	if conf, ok := sections["CONFIDENCE"]; ok {
		resp.Confidence = parseConfidence(conf)
	}
	if cat, ok := sections["CATEGORY"]; ok {
		if w := wordRe.FindString(cat); w != "" {
			resp.Category = domain.ParseCategory(strings.ToLower(w))
		}
	}

	return resp, nil
}

// splitSections maps each marker to the text between it and the next marker.
// The first occurrence of a marker wins.
func splitSections(text string) map[string]string {
	out := make(map[string]string)
	locs := sectionRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		name := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, seen := out[name]; !seen {
			out[name] = text[loc[1]:end]
		}
	}
	return out
}

func parseNames(s string) []string {
	s = strings.TrimSpace(s)
	if m := bracketedRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	var names []string
	for _, part := range nameSplitter.Split(s, -1) {
		if name := strings.Trim(strings.TrimSpace(part), `"'`); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func parseConfidence(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

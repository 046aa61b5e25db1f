package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/michojekunle/amala-atlas/internal/model"
)

// SignalInput is the subset of a submission the extractor looks at.
type SignalInput struct {
	Name     string
	Address  string
	PhotoURL string
	Lat      *float64
	Lng      *float64
}

// ExtractSignals computes heuristic features for a submission. Each keyword
// in vocab counts once if it appears in the name or the address. Matching
// ignores case and tone marks, so "Àmàlà" matches "amala".
func ExtractSignals(in SignalInput, vocab []string) model.Signals {
	haystack := fold(in.Name) + "\n" + fold(in.Address)

	hits := 0
	for _, kw := range vocab {
		needle := fold(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			hits++
		}
	}

	return model.Signals{
		KeywordHits: hits,
		HasPhoto:    strings.TrimSpace(in.PhotoURL) != "",
		HasCoords:   in.Lat != nil && in.Lng != nil,
	}
}

// fold strips combining marks and case-folds s. Transformers carry state,
// so a fresh chain is built per call.
func fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(stripped)
}

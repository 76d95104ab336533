// Package matching scores normalized identification fields against the
// registry and decides whether a record refers to a known organization.
package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// SimilarityFunc scores two normalized values in [0,100]. Implementations are
// symmetric and score identical values (including two empty values) as 100.
type SimilarityFunc func(a, b string) float64

const (
	ScorerRatio          = "ratio"
	ScorerPartialRatio   = "partial_ratio"
	ScorerTokenSortRatio = "token_sort_ratio"
	ScorerJaroWinkler    = "jaro_winkler"
)

var scorers = map[string]SimilarityFunc{
	ScorerRatio:          Ratio,
	ScorerPartialRatio:   PartialRatio,
	ScorerTokenSortRatio: TokenSortRatio,
	ScorerJaroWinkler:    JaroWinkler,
}

// ScorerByName looks up a built-in similarity function.
func ScorerByName(name string) (SimilarityFunc, error) {
	fn, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("unknown similarity scorer %q", name)
	}
	return fn, nil
}

// ScorerNames returns the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ratio is the edit-distance similarity (1 - distance/maxLen) * 100 over runes.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	// integer numerator keeps exact boundaries such as 80 free of float error
	return round(float64((n-d)*100) / float64(n))
}

// PartialRatio is the best Ratio of the shorter value against every
// equal-length window of the longer one. It tolerates suffixes such as
// "inc" or "gmbh" present on only one side.
func PartialRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		score := Ratio(s, string(long[i:i+len(short)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares values after sorting their whitespace-separated tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

// JaroWinkler scores with the Jaro-Winkler metric scaled to [0,100].
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	// fixed argument order makes the score symmetric regardless of metric internals
	if a > b {
		a, b = b, a
	}
	return round(strutil.Similarity(a, b, metrics.NewJaroWinkler()) * 100)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// round limits scores to four decimals so threshold comparisons are stable.
func round(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

package matching

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/normalizers"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100.0, Ratio("", ""))
	assert.Equal(t, 100.0, Ratio("abc", "abc"))
	assert.Equal(t, 0.0, Ratio("abc", ""))
	assert.Equal(t, 80.0, Ratio("abcde", "abcdx"))
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestPartialRatio(t *testing.T) {
	t.Run("substring scores 100", func(t *testing.T) {
		assert.Equal(t, 100.0, PartialRatio("abc pharma", "abc pharma inc"))
		assert.Equal(t, 100.0, PartialRatio("abc pharma inc", "abc pharma"))
	})

	t.Run("empty handling", func(t *testing.T) {
		assert.Equal(t, 100.0, PartialRatio("", ""))
		assert.Equal(t, 0.0, PartialRatio("", "abc"))
	})

	t.Run("dissimilar names stay under the floor", func(t *testing.T) {
		assert.Less(t, PartialRatio("xyz biotech", "abc pharma inc"), 80.0)
	})

	t.Run("equal length falls back to ratio", func(t *testing.T) {
		assert.Equal(t, Ratio("abcde", "abcdx"), PartialRatio("abcde", "abcdx"))
	})
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSortRatio("pharma abc", "abc pharma"))
	assert.Less(t, Ratio("pharma abc", "abc pharma"), 100.0)
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 100.0, JaroWinkler("", ""))
	assert.Equal(t, 0.0, JaroWinkler("", "abc"))
	assert.Equal(t, 100.0, JaroWinkler("martha", "martha"))
	assert.Greater(t, JaroWinkler("martha", "marhta"), 90.0)
}

func TestScorerByName(t *testing.T) {
	for _, name := range ScorerNames() {
		fn, err := ScorerByName(name)
		require.NoError(t, err)
		assert.NotNil(t, fn)
	}
	_, err := ScorerByName("soundex")
	assert.Error(t, err)
}

func TestSimilarity_Properties(t *testing.T) {
	faker := gofakeit.New(7)
	pairs := [][2]string{{"", ""}, {"", "a"}, {"abc pharma", "abc pharma inc"}}
	for i := 0; i < 200; i++ {
		pairs = append(pairs, [2]string{
			normalizers.Normalize(faker.Company()),
			normalizers.Normalize(faker.Company()),
		})
	}

	for _, name := range ScorerNames() {
		fn, err := ScorerByName(name)
		require.NoError(t, err)

		t.Run(name, func(t *testing.T) {
			for _, p := range pairs {
				ab, ba := fn(p[0], p[1]), fn(p[1], p[0])
				assert.Equal(t, ab, ba, "symmetry for %q / %q", p[0], p[1])
				assert.GreaterOrEqual(t, ab, 0.0)
				assert.LessOrEqual(t, ab, 100.0)
				if p[0] != "" {
					assert.Equal(t, 100.0, fn(p[0], p[0]), "identity for %q", p[0])
				}
			}
		})
	}
}

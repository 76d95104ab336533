// Package fingerprint derives stable content keys for identification fields.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ForFields hashes the six canonical fields in a fixed order. Callers pass
// normalized fields so formatting differences do not change the key.
func ForFields(fields models.Fields) string {
	var b strings.Builder
	for _, field := range models.CanonicalFields {
		b.WriteString(string(field))
		b.WriteByte('=')
		b.WriteString(fields.Get(field))
		b.WriteByte('\n')
	}
	return hash(b.String())
}

// ForRecord keys a source record: its source tag plus the field fingerprint.
func ForRecord(source models.SourceType, fields models.Fields) string {
	return hash(string(source) + "\n" + ForFields(fields))
}

// Generate creates a deterministic fingerprint of arbitrary JSON-like data
// by hashing a canonical form with sorted keys.
func Generate(data map[string]any) string {
	return hash(canonicalize(data))
}

func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			keyJSON, _ := json.Marshal(k)
			parts = append(parts, string(keyJSON)+":"+canonicalize(v[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = canonicalize(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

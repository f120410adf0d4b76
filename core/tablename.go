package core

import "strings"

// EmbeddingTablePrefix prefixes every per-model embedding table.
const EmbeddingTablePrefix = "text_embeddings_"

// EmbeddingTableName derives the embedding table name for a model
// identifier. The derivation is deterministic: the model name is
// lowercased, every run of non-alphanumeric characters collapses to a
// single underscore, and the result is prefixed with "text_embeddings_".
//
//	"text-embedding-3-small" -> "text_embeddings_text_embedding_3_small"
//	"BAAI/bge-m3"            -> "text_embeddings_baai_bge_m3"
func EmbeddingTableName(model string) string {
	var b strings.Builder
	b.WriteString(EmbeddingTablePrefix)

	lastUnderscore := true // suppress a leading underscore after the prefix
	for _, r := range strings.ToLower(model) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

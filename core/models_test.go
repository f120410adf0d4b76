package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_Deterministic(t *testing.T) {
	h1 := ContentHash("beam current dropped to 0 at 14:32")
	h2 := ContentHash("beam current dropped to 0 at 14:32")
	assert.Equal(t, h1, h2, "identical content must produce identical hashes")
	assert.Len(t, h1, 16, "8-byte hash should hex-encode to 16 characters")
}

func TestContentHash_DiffersForDifferentContent(t *testing.T) {
	assert.NotEqual(t, ContentHash("entry one"), ContentHash("entry two"))
}

func TestEmbeddingTableName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"text-embedding-3-small", "text_embeddings_text_embedding_3_small"},
		{"BAAI/bge-m3", "text_embeddings_baai_bge_m3"},
		{"embeddinggemma", "text_embeddings_embeddinggemma"},
		{"nomic-embed-text:v1.5", "text_embeddings_nomic_embed_text_v1_5"},
		{"weird--..--name", "text_embeddings_weird_name"},
		{"--leading", "text_embeddings_leading"},
		{"trailing--", "text_embeddings_trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, EmbeddingTableName(tt.model))
		})
	}
}

package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ariel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string) *core.LogbookEntry {
	return &core.LogbookEntry{EntryID: id, SourceSystem: "ops-log", Author: "operator", RawText: "entry " + id}
}

func hit(id string, score float64) *Hit {
	return &Hit{Entry: entry(id), Score: score}
}

func fusedIDs(fused []*core.FusedHit) []string {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.Entry.EntryID
	}
	return ids
}

func TestFuse(t *testing.T) {
	t.Run("entry in both lists outranks single-list entry", func(t *testing.T) {
		keyword := []*Hit{hit("E1", 0.9)}
		semantic := []*Hit{hit("E1", 0.95), hit("E2", 0.8)}

		fused := Fuse([][]*Hit{keyword, semantic}, DefaultFusionK, 10)

		require.Len(t, fused, 2)
		assert.Equal(t, []string{"E1", "E2"}, fusedIDs(fused))
		assert.Greater(t, fused[0].Score, fused[1].Score)
	})

	t.Run("double rank-1 appearance beats single rank-1", func(t *testing.T) {
		listA := []*Hit{hit("both", 1.0)}
		listB := []*Hit{hit("both", 1.0)}
		listC := []*Hit{hit("once", 1.0)}

		fused := Fuse([][]*Hit{listA, listB, listC}, DefaultFusionK, 10)

		require.Len(t, fused, 2)
		assert.Equal(t, "both", fused[0].Entry.EntryID)
		assert.InDelta(t, 2.0/61.0, fused[0].Score, 1e-9)
		assert.InDelta(t, 1.0/61.0, fused[1].Score, 1e-9)
	})

	t.Run("output capped at maxResults", func(t *testing.T) {
		list := []*Hit{hit("a", 1), hit("b", 1), hit("c", 1), hit("d", 1)}
		fused := Fuse([][]*Hit{list}, DefaultFusionK, 2)
		assert.Len(t, fused, 2)
	})

	t.Run("empty inputs produce empty output", func(t *testing.T) {
		assert.Empty(t, Fuse(nil, DefaultFusionK, 10))
		assert.Empty(t, Fuse([][]*Hit{{}, {}}, DefaultFusionK, 10))
	})

	t.Run("rank drives score, not raw retriever score", func(t *testing.T) {
		// Raw scores are incomparable across retrievers; only position counts.
		list := []*Hit{hit("low", 0.1), hit("high", 99.0)}
		fused := Fuse([][]*Hit{list}, DefaultFusionK, 10)
		assert.Equal(t, []string{"low", "high"}, fusedIDs(fused))
	})
}

// stubRetriever returns fixed hits or a fixed error.
type stubRetriever struct {
	name string
	hits []*Hit
	err  error
}

func (r *stubRetriever) Name() string { return r.name }

func (r *stubRetriever) Retrieve(ctx context.Context, query Query) ([]*Hit, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.hits, nil
}

func TestHybridRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("fuses all retriever lists", func(t *testing.T) {
		keyword := &stubRetriever{name: "keyword", hits: []*Hit{hit("E1", 0.9)}}
		semantic := &stubRetriever{name: "semantic", hits: []*Hit{hit("E1", 0.95), hit("E2", 0.8)}}

		hybrid, err := NewHybridRetriever([]Retriever{keyword, semantic}, DefaultFusionK)
		require.NoError(t, err)
		defer hybrid.Release()

		fused, modesUsed, err := hybrid.Retrieve(ctx, Query{Text: "pump", MaxResults: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{"E1", "E2"}, fusedIDs(fused))
		assert.ElementsMatch(t, []string{"keyword", "semantic"}, modesUsed)
	})

	t.Run("failed retriever contributes empty list", func(t *testing.T) {
		failing := &stubRetriever{name: "keyword", err: errors.New("index offline")}
		working := &stubRetriever{name: "semantic", hits: []*Hit{hit("E1", 0.9)}}

		hybrid, err := NewHybridRetriever([]Retriever{failing, working}, DefaultFusionK)
		require.NoError(t, err)
		defer hybrid.Release()

		fused, modesUsed, err := hybrid.Retrieve(ctx, Query{Text: "pump", MaxResults: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{"E1"}, fusedIDs(fused))
		assert.Equal(t, []string{"semantic"}, modesUsed)
	})

	t.Run("all retrievers failing surfaces an execution error", func(t *testing.T) {
		a := &stubRetriever{name: "keyword", err: errors.New("down")}
		b := &stubRetriever{name: "semantic", err: errors.New("down")}

		hybrid, err := NewHybridRetriever([]Retriever{a, b}, DefaultFusionK)
		require.NoError(t, err)
		defer hybrid.Release()

		_, _, err = hybrid.Retrieve(ctx, Query{Text: "pump"})
		var execErr *core.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "pump", execErr.Query)
	})

	t.Run("requires at least one retriever", func(t *testing.T) {
		_, err := NewHybridRetriever(nil, DefaultFusionK)
		assert.ErrorIs(t, err, ErrNoRetrievers)
	})
}

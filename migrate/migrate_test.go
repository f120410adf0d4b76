package migrate

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecer records executed SQL without a database.
type fakeExecer struct {
	statements []string
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	return pgconn.CommandTag{}, nil
}

func noop(name string, deps ...string) Migration {
	return Migration{
		Name:      name,
		DependsOn: deps,
		Apply:     func(context.Context, Execer) error { return nil },
	}
}

func planNames(t *testing.T, migrations []Migration) []string {
	t.Helper()
	plan, err := NewRunner(migrations, nil).Plan()
	require.NoError(t, err)
	names := make([]string, len(plan))
	for i, m := range plan {
		names[i] = m.Name
	}
	return names
}

func TestPlan_DiamondStartsWithRoot(t *testing.T) {
	names := planNames(t, []Migration{noop("B", "A"), noop("C", "A"), noop("A")})
	require.Len(t, names, 3)
	assert.Equal(t, "A", names[0], "any valid order starts with the root")
	assert.ElementsMatch(t, []string{"B", "C"}, names[1:])
}

func TestPlan_Deterministic(t *testing.T) {
	migrations := []Migration{noop("zeta"), noop("alpha"), noop("mid", "alpha")}
	first := planNames(t, migrations)
	for range 5 {
		assert.Equal(t, first, planNames(t, migrations))
	}
}

func TestPlan_RespectsChains(t *testing.T) {
	names := planNames(t, []Migration{
		noop("tables", "ext"),
		noop("ext"),
		noop("index", "tables"),
	})
	assert.Equal(t, []string{"ext", "tables", "index"}, names)
}

func TestPlan_CycleFailsAndNamesMembers(t *testing.T) {
	runner := NewRunner([]Migration{noop("A", "B"), noop("B", "A")}, nil)

	_, err := runner.Plan()
	require.Error(t, err)
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "A")
	assert.Contains(t, ce.Reason, "B")
}

func TestApply_CycleAppliesNothing(t *testing.T) {
	applied := 0
	bad := []Migration{
		{Name: "A", DependsOn: []string{"B"}, Apply: func(context.Context, Execer) error { applied++; return nil }},
		{Name: "B", DependsOn: []string{"A"}, Apply: func(context.Context, Execer) error { applied++; return nil }},
	}

	err := NewRunner(bad, nil).Apply(context.Background(), &fakeExecer{})
	require.Error(t, err)
	assert.Zero(t, applied, "a cycle must prevent every apply")
}

func TestPlan_UnknownDependency(t *testing.T) {
	_, err := NewRunner([]Migration{noop("A", "missing")}, nil).Plan()
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "missing")
}

func TestPlan_DuplicateName(t *testing.T) {
	_, err := NewRunner([]Migration{noop("A"), noop("A")}, nil).Plan()
	var ce *core.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestForConfig_KeywordOnlySkipsVector(t *testing.T) {
	cfg := config.Default()
	cfg.SearchModules.Keyword.Enabled = true

	names := planNames(t, ForConfig(cfg))
	assert.NotContains(t, names, "ext_vector")
	assert.Contains(t, names, "logbook_entries")
	assert.Contains(t, names, "ingestion_runs")
}

func TestForConfig_EmbeddingModelsAddTables(t *testing.T) {
	cfg := config.Default()
	cfg.EnhancementModules.TextEmbedding.Enabled = true
	cfg.EnhancementModules.TextEmbedding.Models = []string{"text-embedding-3-small"}
	cfg.EnhancementModules.TextEmbedding.Dimension = 1536

	names := planNames(t, ForConfig(cfg))
	assert.Contains(t, names, "ext_vector")
	assert.Contains(t, names, "embedding_table_text_embeddings_text_embedding_3_small")

	// Extension and base table must precede the embedding table.
	pos := map[string]int{}
	for i, n := range names {
		pos[n] = i
	}
	assert.Less(t, pos["ext_vector"], pos["embedding_table_text_embeddings_text_embedding_3_small"])
	assert.Less(t, pos["logbook_entries"], pos["embedding_table_text_embeddings_text_embedding_3_small"])
}

func TestForConfig_SemanticModelGetsTableToo(t *testing.T) {
	cfg := config.Default()
	cfg.SearchModules.Semantic.Enabled = true
	cfg.SearchModules.Semantic.Model = "bge-m3"

	names := planNames(t, ForConfig(cfg))
	assert.Contains(t, names, "embedding_table_text_embeddings_bge_m3")
}

func TestApply_ExecutesInOrder(t *testing.T) {
	db := &fakeExecer{}
	cfg := config.Default()
	cfg.SearchModules.Keyword.Enabled = true

	err := NewRunner(ForConfig(cfg), nil).Apply(context.Background(), db)
	require.NoError(t, err)
	assert.NotEmpty(t, db.statements)
	assert.Contains(t, db.statements[0], "pg_trgm")
}

package repositories_test

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/repositories"
	"github.com/myrjola/dossier/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewRecordRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	_, found, err := repo.Load(ctx, "investigations")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, repo.Save(ctx, "investigations", []byte(`[{"id":"x1"}]`)))
	value, found, err := repo.Load(ctx, "investigations")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `[{"id":"x1"}]`, string(value))

	// Saving again replaces the value.
	require.NoError(t, repo.Save(ctx, "investigations", []byte(`[]`)))
	value, _, err = repo.Load(ctx, "investigations")
	require.NoError(t, err)
	require.Equal(t, "[]", string(value))

	require.NoError(t, repo.Save(ctx, "ai-config", []byte(`{}`)))
	keys, err := repo.Keys(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"investigations", "ai-config"}, keys)
}

func TestRecordRepository_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	dbs := newTestDB(t)
	repo := repositories.NewRecordRepository(dbs, testhelpers.NewLogger(io.Discard))
	require.NoError(t, dbs.ReadWrite.Close())

	require.Error(t, repo.Save(ctx, "reports", []byte(`[]`)))
}

func BenchmarkRecordRepository_Save(b *testing.B) {
	ctx := context.Background()
	repo := repositories.NewRecordRepository(newBenchmarkDB(b), testhelpers.NewLogger(io.Discard))
	value := []byte(`{"isEnabled":true,"selectedModel":"openai"}`)
	b.ResetTimer()
	for i := range b.N {
		if err := repo.Save(ctx, fmt.Sprintf("key-%d", i%100), value); err != nil {
			b.Fatal(err)
		}
	}
}

package repositories_test

import (
	"context"
	"fmt"
	"github.com/myrjola/dossier/internal/sqlite"
	"github.com/myrjola/dossier/internal/testhelpers"
	"io"
	"os"
	"testing"
)

// newTestDB creates a new in-memory database for testing purposes.
func newTestDB(t *testing.T) *sqlite.Database {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	dbs, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		if err = dbs.Close(); err != nil {
			t.Error(err)
		}
	})
	return dbs
}

// newBenchmarkDB creates a file-backed database for benchmarking purposes.
func newBenchmarkDB(b *testing.B) *sqlite.Database {
	b.Helper()
	benchmarkDBPath := "./benchmark.sqlite"
	ctx, cancel := context.WithCancel(context.Background())
	dbs, err := sqlite.NewDatabase(ctx, benchmarkDBPath, testhelpers.NewLogger(io.Discard))
	if err != nil {
		cancel()
		b.Fatal(err)
	}
	b.Cleanup(func() {
		cancel()
		if err = dbs.Close(); err != nil {
			b.Error(err)
		}
		_ = os.Remove(benchmarkDBPath)
		_ = os.Remove(fmt.Sprintf("%s-shm", benchmarkDBPath))
		_ = os.Remove(fmt.Sprintf("%s-wal", benchmarkDBPath))
	})
	return dbs
}

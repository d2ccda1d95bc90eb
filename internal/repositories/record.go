package repositories

import (
	"context"
	"database/sql"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/sqlite"
	"log/slog"
	"time"
)

// RecordRepository is the durable key-value store. Values are opaque JSON documents.
type RecordRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewRecordRepository(dbs *sqlite.Database, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{
		dbs:    dbs,
		logger: logger.With("source", "RecordRepository"),
	}
}

type record struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

// Save creates or replaces the value stored under key.
func (r *RecordRepository) Save(ctx context.Context, key string, value []byte) error {
	stmt := `INSERT INTO records (key, value, updated_at)
VALUES (:key, :value, :updated_at)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	rec := record{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if _, err := r.dbs.ReadWrite.NamedExecContext(ctx, stmt, rec); err != nil {
		return errors.Wrap(err, "save record", slog.String("key", key))
	}
	return nil
}

// Load returns the value stored under key. The boolean is false when nothing has been saved under key.
func (r *RecordRepository) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.dbs.ReadOnly.GetContext(ctx, &value, `SELECT value FROM records WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "load record", slog.String("key", key))
	}
	return []byte(value), true, nil
}

// Keys lists the stored keys, most recently updated first.
func (r *RecordRepository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.dbs.ReadOnly.SelectContext(ctx, &keys,
		`SELECT key FROM records ORDER BY updated_at DESC, key`); err != nil {
		return nil, errors.Wrap(err, "list record keys")
	}
	return keys, nil
}

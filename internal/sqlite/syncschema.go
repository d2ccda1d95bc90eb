package sqlite

import (
	"context"
	"fmt"
	"github.com/jmoiron/sqlx"
	"github.com/myrjola/dossier/internal/errors"
	"github.com/myrjola/dossier/internal/random"
	"log/slog"
	"strings"
)

// migrateTo makes the database schema match schemaDefinition.
//
// The migration is declarative: schemaDefinition is applied to an empty in-memory database, which is then attached
// and compared with the live schema. Removed tables are dropped, new tables created and changed tables rebuilt with
// the generalized ALTER TABLE procedure from https://www.sqlite.org/lang_altertable.html#otheralter. Indexes and
// triggers are dropped and recreated whenever their definition differs.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	var (
		randomID     string
		dbNameLength uint = 20
	)
	if randomID, err = random.Letters(dbNameLength); err != nil {
		return errors.Wrap(err, "generate random ID")
	}
	targetDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", randomID)
	target, err := sqlx.Open("sqlite3", targetDSN)
	if err != nil {
		return errors.Wrap(err, "open schema target database")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(target.Close(), "close schema target database"))
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return errors.Wrap(err, "apply schema to target database")
	}

	// ATTACH and the foreign key pragma are no-ops inside a transaction, so they run on a pinned connection first.
	conn, err := db.ReadWrite.Connx(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer func() {
		err = errors.Join(err, errors.Wrap(conn.Close(), "release connection"))
	}()
	if _, err = conn.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", targetDSN); err != nil {
		return errors.Wrap(err, "attach schema target database")
	}
	defer func() {
		_, detachErr := conn.ExecContext(ctx, "DETACH DATABASE schemaTarget")
		err = errors.Join(err, errors.Wrap(detachErr, "detach schema target database"))
	}()
	if _, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign key validation")
	}
	defer func() {
		_, pragmaErr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
		err = errors.Join(err, errors.Wrap(pragmaErr, "re-enable foreign key validation"))
	}()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, errors.Wrap(tx.Rollback(), "rollback"))
		}
	}()

	if err = db.migrateTables(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate tables")
	}
	if err = db.migrateObjects(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate indexes and triggers")
	}
	var violations []string
	if err = tx.SelectContext(ctx, &violations, `SELECT "table" FROM pragma_foreign_key_check`); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations after migration",
			slog.String("tables", strings.Join(violations, ",")))
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

type schemaObject struct {
	Name       string `db:"name"`
	CurrentSQL string `db:"current_sql"`
	TargetSQL  string `db:"target_sql"`
}

func (db *Database) migrateTables(ctx context.Context, tx *sqlx.Tx) error {
	var deleted []string
	if err := tx.SelectContext(ctx, &deleted, `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND target.name IS NULL AND current.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query deleted tables")
	}
	for _, table := range deleted {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	var created []string
	if err := tx.SelectContext(ctx, &created, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
LEFT JOIN main.sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = 'table' AND current.name IS NULL AND target.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", query))
		}
	}

	var changed []schemaObject
	if err := tx.SelectContext(ctx, &changed, `SELECT current.name AS name, current.sql AS current_sql,
       target.sql AS target_sql
FROM main.sqlite_schema AS current
JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = 'table' AND current.name NOT LIKE 'sqlite_%' AND current.sql <> target.sql`); err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, table := range changed {
		if err := db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
		}
	}
	return nil
}

// rebuildTable creates the table under a temporary name, copies the shared columns and swaps the tables.
func (db *Database) rebuildTable(ctx context.Context, tx *sqlx.Tx, table schemaObject) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", table.Name),
		slog.String("current_sql", table.CurrentSQL),
		slog.String("target_sql", table.TargetSQL))

	tempName := table.Name + "_migration_temp"
	tempSQL := strings.Replace(table.TargetSQL, table.Name, tempName, 1)
	if _, err := tx.ExecContext(ctx, tempSQL); err != nil {
		return errors.Wrap(err, "create temporary table", slog.String("query", tempSQL))
	}

	// Column names are quoted in case they are SQLite keywords.
	var columns []string
	if err := tx.SelectContext(ctx, &columns, `SELECT '"' || target.name || '"'
FROM pragma_table_info(?) AS current
JOIN pragma_table_info(?, 'schemaTarget') AS target ON target.name = current.name`,
		table.Name, table.Name); err != nil {
		return errors.Wrap(err, "query common columns")
	}
	if len(columns) > 0 {
		common := strings.Join(columns, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", //nolint:gosec // identifiers come from the schema.
			tempName, common, common, table.Name)
		if _, err := tx.ExecContext(ctx, copySQL); err != nil {
			return errors.Wrap(err, "copy data", slog.String("query", copySQL))
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
		return errors.Wrap(err, "drop old table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, table.Name)); err != nil {
		return errors.Wrap(err, "rename temporary table")
	}
	return nil
}

// migrateObjects synchronizes indexes and triggers. Rebuilt tables lose theirs, so this runs after migrateTables.
func (db *Database) migrateObjects(ctx context.Context, tx *sqlx.Tx) error {
	for _, kind := range []string{"index", "trigger"} {
		var stale []string
		if err := tx.SelectContext(ctx, &stale, `SELECT current.name
FROM main.sqlite_schema AS current
LEFT JOIN schemaTarget.sqlite_schema AS target ON current.name = target.name AND current.type = target.type
WHERE current.type = ? AND current.sql IS NOT NULL AND (target.name IS NULL OR target.sql <> current.sql)`,
			kind); err != nil {
			return errors.Wrap(err, "query stale objects", slog.String("type", kind))
		}
		for _, name := range stale {
			db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping schema object",
				slog.String("type", kind), slog.String("name", name))
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP %s %q", strings.ToUpper(kind), name)); err != nil {
				return errors.Wrap(err, "drop schema object", slog.String("name", name))
			}
		}

		var missing []string
		if err := tx.SelectContext(ctx, &missing, `SELECT target.sql
FROM schemaTarget.sqlite_schema AS target
LEFT JOIN main.sqlite_schema AS current ON current.name = target.name AND current.type = target.type
WHERE target.type = ? AND target.sql IS NOT NULL AND current.name IS NULL`, kind); err != nil {
			return errors.Wrap(err, "query missing objects", slog.String("type", kind))
		}
		for _, query := range missing {
			db.logger.LogAttrs(ctx, slog.LevelInfo, "creating schema object",
				slog.String("type", kind), slog.String("query", query))
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return errors.Wrap(err, "create schema object", slog.String("query", query))
			}
		}
	}
	return nil
}

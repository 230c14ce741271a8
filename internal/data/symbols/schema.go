package symbols

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pyintel/internal/engine/analyzer"
)

const schemaVersion = 1

// migrateSchema creates the index tables. Older or unknown layouts are
// dropped and rebuilt; the index is derived data.
func migrateSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)
	if version == schemaVersion {
		return nil
	}
	_, err := db.Exec(fmt.Sprintf(`
DROP TABLE IF EXISTS exports;
DROP TABLE IF EXISTS modules;

CREATE TABLE modules (
  module_name TEXT    NOT NULL PRIMARY KEY,
  file_path   TEXT    NOT NULL DEFAULT '',
  fingerprint TEXT    NOT NULL DEFAULT '',
  indexed_at  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE exports (
  source_module TEXT NOT NULL,
  module_name   TEXT NOT NULL,
  name          TEXT NOT NULL,
  kind          TEXT NOT NULL DEFAULT '',
  description   TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (module_name, name)
);
CREATE INDEX idx_exports_name ON exports(name);
CREATE INDEX idx_exports_source ON exports(source_module);

PRAGMA user_version = %d;
`, schemaVersion))
	if err != nil {
		return fmt.Errorf("create symbol index schema: %w", err)
	}
	return nil
}

func deleteModule(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM exports WHERE source_module = ?`, name); err != nil {
		return fmt.Errorf("delete exports of %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM modules WHERE module_name = ?`, name); err != nil {
		return fmt.Errorf("delete module %q: %w", name, err)
	}
	return nil
}

func upsertModule(ctx context.Context, tx *sql.Tx, ma *analyzer.ModuleAnalysis) error {
	if err := deleteModule(ctx, tx, ma.Name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO modules (module_name, file_path, fingerprint, indexed_at) VALUES (?, ?, ?, ?)`,
		ma.Name, ma.Path, fmt.Sprintf("%016x", ma.Fingerprint), time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert module %q: %w", ma.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO exports (source_module, module_name, name, kind, description) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare export insert: %w", err)
	}
	defer stmt.Close()
	for _, ex := range exportsOf(ma) {
		if _, err := stmt.ExecContext(ctx, ma.Name, ex.Module, ex.Name, ex.Kind, ex.Description); err != nil {
			return fmt.Errorf("insert export (%s:%s): %w", ex.Module, ex.Name, err)
		}
	}
	return nil
}

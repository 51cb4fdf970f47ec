package store

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS companies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  name_key TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT 'tech',
  location TEXT NOT NULL DEFAULT '',
  logo_url TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL REFERENCES companies(id),
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  job_type TEXT NOT NULL DEFAULT 'full-time',
  season TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'notOpen',
  hidden INTEGER NOT NULL DEFAULT 0,
  description TEXT NOT NULL DEFAULT '',
  salary_text TEXT NOT NULL DEFAULT '',
  visa_sponsored TEXT NOT NULL DEFAULT 'unsure',
  date_added TEXT NOT NULL,
  closed_on TEXT
);
`); err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_companies_name_key ON companies(name_key);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_positions_url ON positions(url);`,
		`CREATE INDEX IF NOT EXISTS ix_positions_open ON positions(status, hidden, date_added);`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	if !columnExists(tx, "positions", "closed_on") {
		if _, err := tx.Exec(`ALTER TABLE positions ADD COLUMN closed_on TEXT;`); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}

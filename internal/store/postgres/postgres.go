// Package postgres is the Postgres (Supabase compatible) position store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

// ParseConfig builds the pool config from url. A non-empty password replaces
// the one in the URL.
func ParseConfig(url, password string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if password != "" {
		cfg.ConnConfig.Password = password
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	return cfg, nil
}

// Open connects with exponential backoff for up to maxElapsed, then makes
// sure the schema exists.
func Open(ctx context.Context, url, password string, maxElapsed time.Duration) (*Store, error) {
	cfg, err := ParseConfig(url, password)
	if err != nil {
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxElapsedTime = maxElapsed

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warnf("[store] postgres ping failed host=%s err=%v", cfg.ConnConfig.Host, err)
			return err
		}
		pool = p
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS companies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  name_key TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL DEFAULT 'tech',
  location TEXT NOT NULL DEFAULT '',
  logo_url TEXT NOT NULL DEFAULT ''
)`,
		`CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  company_id TEXT NOT NULL REFERENCES companies(id),
  title TEXT NOT NULL,
  url TEXT NOT NULL UNIQUE,
  job_type TEXT NOT NULL DEFAULT 'full-time',
  season TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'notOpen',
  hidden BOOLEAN NOT NULL DEFAULT FALSE,
  description TEXT NOT NULL DEFAULT '',
  salary_text TEXT NOT NULL DEFAULT '',
  visa_sponsored TEXT NOT NULL DEFAULT 'unsure',
  date_added TEXT NOT NULL,
  closed_on TEXT
)`,
		`CREATE INDEX IF NOT EXISTS ix_positions_open ON positions(status, hidden, date_added)`,
	} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const selectPosition = `
SELECT p.id, p.title, p.url, p.job_type, p.season, p.status, p.hidden,
       p.description, p.salary_text, p.visa_sponsored, p.date_added, COALESCE(p.closed_on, ''),
       c.id, c.name, c.type, c.location, c.logo_url
FROM positions p
JOIN companies c ON c.id = p.company_id
`

func scanPosition(r pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := r.Scan(
		&p.ID, &p.Title, &p.URL, &p.JobType, &p.Season, &p.Status, &p.Hidden,
		&p.Description, &p.SalaryText, &p.VisaSponsored, &p.DateAdded, &p.ClosedOn,
		&p.Company.ID, &p.Company.Name, &p.Company.Type, &p.Company.Location, &p.Company.LogoURL,
	)
	return p, err
}

func (s *Store) ListOpenRoles(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, selectPosition+`
WHERE p.status = $1 AND NOT p.hidden
ORDER BY p.date_added DESC`, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("list open roles: %w", err)
	}
	defer rows.Close()

	out := []domain.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, selectPosition+`WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePositionStatus(ctx context.Context, id, status string, now time.Time) (domain.Position, error) {
	if !store.ValidStatusUpdate(status) {
		return domain.Position{}, fmt.Errorf("invalid status %q", status)
	}

	var closedOn *string
	if v := store.ClosedOn(status, now); v != "" {
		closedOn = &v
	}

	tag, err := s.pool.Exec(ctx, `UPDATE positions SET status = $1, closed_on = $2 WHERE id = $3`, status, closedOn, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("update position status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Position{}, store.ErrNotFound
	}
	return s.GetPosition(ctx, id)
}

func (s *Store) SaveDiscovered(ctx context.Context, results []domain.SearchResult) (int, error) {
	rows := store.Discovered(results)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := store.DateAdded(time.Now())
	companies := map[string]string{}
	added := 0

	for _, r := range rows {
		cid, ok := companies[r.CompanyKey]
		if !ok {
			err := tx.QueryRow(ctx, `
INSERT INTO companies (id, name, name_key, logo_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name_key) DO UPDATE SET
  logo_url = CASE WHEN companies.logo_url = '' THEN EXCLUDED.logo_url ELSE companies.logo_url END
RETURNING id`,
				uuid.NewString(), r.CompanyName, r.CompanyKey, r.LogoURL,
			).Scan(&cid)
			if err != nil {
				return 0, fmt.Errorf("upsert company: %w", err)
			}
			companies[r.CompanyKey] = cid
		}

		tag, err := tx.Exec(ctx, `
INSERT INTO positions (id, company_id, title, url, status, hidden, date_added)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
ON CONFLICT (url) DO NOTHING`,
			uuid.NewString(), cid, r.Title, r.URL, domain.PositionOpen, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert position: %w", err)
		}
		added += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return added, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobaudit-engine/internal/domain"
)

const selectPosition = `
SELECT p.id, p.title, p.url, p.job_type, p.season, p.status, p.hidden,
       p.description, p.salary_text, p.visa_sponsored, p.date_added, COALESCE(p.closed_on, ''),
       c.id, c.name, c.type, c.location, c.logo_url
FROM positions p
JOIN companies c ON c.id = p.company_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (domain.Position, error) {
	var p domain.Position
	var hidden int
	err := r.Scan(
		&p.ID, &p.Title, &p.URL, &p.JobType, &p.Season, &p.Status, &hidden,
		&p.Description, &p.SalaryText, &p.VisaSponsored, &p.DateAdded, &p.ClosedOn,
		&p.Company.ID, &p.Company.Name, &p.Company.Type, &p.Company.Location, &p.Company.LogoURL,
	)
	p.Hidden = hidden != 0
	return p, err
}

// ListOpenRoles returns visible open positions, newest first.
func (d *DB) ListOpenRoles(ctx context.Context) ([]domain.Position, error) {
	rows, err := d.Pool.QueryContext(ctx, selectPosition+`
WHERE p.status = ? AND p.hidden = 0
ORDER BY p.date_added DESC;`, domain.PositionOpen)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) GetPosition(ctx context.Context, id string) (domain.Position, error) {
	p, err := scanPosition(d.Pool.QueryRowContext(ctx, selectPosition+`WHERE p.id = ? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Position{}, ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// UpdatePositionStatus sets status to open or closed and stamps closedOn.
func (d *DB) UpdatePositionStatus(ctx context.Context, id, status string, now time.Time) (domain.Position, error) {
	if !ValidStatusUpdate(status) {
		return domain.Position{}, fmt.Errorf("invalid status %q", status)
	}

	var closedOn any
	if s := ClosedOn(status, now); s != "" {
		closedOn = s
	}

	res, err := d.Pool.ExecContext(ctx, `
UPDATE positions
SET status = ?, closed_on = ?
WHERE id = ?;`, status, closedOn, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("update position status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Position{}, ErrNotFound
	}
	return d.GetPosition(ctx, id)
}

// SaveDiscovered inserts audit postings as hidden positions for review.
// Postings whose URL is already stored are left alone. Returns how many
// were added.
func (d *DB) SaveDiscovered(ctx context.Context, results []domain.SearchResult) (int, error) {
	rows := Discovered(results)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := DateAdded(time.Now())
	companies := map[string]string{}
	added := 0

	for _, r := range rows {
		cid, ok := companies[r.CompanyKey]
		if !ok {
			cid, err = d.ensureCompany(ctx, tx, r)
			if err != nil {
				return 0, err
			}
			companies[r.CompanyKey] = cid
		}

		res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO positions (id, company_id, title, url, status, hidden, date_added)
VALUES (?, ?, ?, ?, ?, 1, ?);`,
			d.newID(), cid, r.Title, r.URL, domain.PositionOpen, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert position: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

func (d *DB) ensureCompany(ctx context.Context, tx *sql.Tx, r DiscoveredPosition) (string, error) {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO companies (id, name, name_key, logo_url)
VALUES (?, ?, ?, ?);`,
		d.newID(), r.CompanyName, r.CompanyKey, r.LogoURL,
	); err != nil {
		return "", fmt.Errorf("insert company: %w", err)
	}

	if r.LogoURL != "" {
		_, _ = tx.ExecContext(ctx, `
UPDATE companies
SET logo_url = ?
WHERE name_key = ?
  AND (logo_url = '' OR logo_url IS NULL);`,
			r.LogoURL, r.CompanyKey,
		)
	}

	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE name_key = ? LIMIT 1;`, r.CompanyKey).Scan(&id); err != nil {
		return "", fmt.Errorf("lookup company %q: %w", strings.TrimSpace(r.CompanyName), err)
	}
	return id, nil
}

// AddPosition stores a position under its company (created on first use) and
// returns it with ids and dateAdded filled in.
func (d *DB) AddPosition(ctx context.Context, p domain.Position) (domain.Position, error) {
	key := NormalizeCompanyKey(p.Company.Name)
	if key == "" || strings.TrimSpace(p.URL) == "" || strings.TrimSpace(p.Title) == "" {
		return domain.Position{}, fmt.Errorf("position needs company, title and url")
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cid, err := d.ensureCompany(ctx, tx, DiscoveredPosition{
		CompanyKey:  key,
		CompanyName: strings.TrimSpace(p.Company.Name),
		LogoURL:     p.Company.LogoURL,
	})
	if err != nil {
		return domain.Position{}, err
	}

	if p.ID == "" {
		p.ID = d.newID()
	}
	if p.DateAdded == "" {
		p.DateAdded = DateAdded(time.Now())
	}
	if p.Status == "" {
		p.Status = domain.PositionNotOpen
	}
	if p.JobType == "" {
		p.JobType = "full-time"
	}
	if p.VisaSponsored == "" {
		p.VisaSponsored = "unsure"
	}
	hidden := 0
	if p.Hidden {
		hidden = 1
	}
	var closedOn any
	if p.ClosedOn != "" {
		closedOn = p.ClosedOn
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO positions (id, company_id, title, url, job_type, season, status, hidden,
                       description, salary_text, visa_sponsored, date_added, closed_on)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.ID, cid, p.Title, p.URL, p.JobType, p.Season, p.Status, hidden,
		p.Description, p.SalaryText, p.VisaSponsored, p.DateAdded, closedOn,
	); err != nil {
		return domain.Position{}, fmt.Errorf("insert position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Position{}, err
	}
	return d.GetPosition(ctx, p.ID)
}

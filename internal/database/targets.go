package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
)

// DefaultListLimit caps ListTargets when no limit is given.
const DefaultListLimit = 200

// UpsertTarget inserts the target or overwrites the stored one with the same
// URL. Re-visits keep id and detected_at, increment scan_count and replace
// every other field. It returns the target id.
func (s *Store) UpsertTarget(ctx context.Context, t *model.Target) (int64, error) {
	now := formatTimestamp(s.now())
	query := `
	INSERT INTO targets (url, domain, title, detected_at, last_scanned, scan_count,
		status, risk_score, risk_level, external_risk, content_hash, language, notes)
	VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		domain = excluded.domain,
		title = excluded.title,
		last_scanned = excluded.last_scanned,
		scan_count = targets.scan_count + 1,
		status = excluded.status,
		risk_score = excluded.risk_score,
		risk_level = excluded.risk_level,
		external_risk = excluded.external_risk,
		content_hash = excluded.content_hash,
		language = excluded.language,
		notes = excluded.notes
	RETURNING id
	`

	level := t.RiskLevel
	if level == "" {
		level = model.RiskUnknown
	}
	external := t.ExternalRisk
	if external == "" {
		external = model.ExternalUnknown
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		t.URL,
		t.Domain,
		t.Title,
		now,
		now,
		string(t.Status),
		t.RiskScore,
		string(level),
		string(external),
		t.ContentHash,
		t.Language,
		t.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert target: %w", err)
	}
	return id, nil
}

// RecordError stores a failed visit: status error, risk unknown, score 0,
// external risk unknown, and the error text in notes.
func (s *Store) RecordError(ctx context.Context, url, domain string, visitErr error) (int64, error) {
	notes := ""
	if visitErr != nil {
		notes = visitErr.Error()
	}
	return s.UpsertTarget(ctx, &model.Target{
		URL:          url,
		Domain:       domain,
		Status:       model.StatusError,
		RiskLevel:    model.RiskUnknown,
		ExternalRisk: model.ExternalUnknown,
		Notes:        notes,
	})
}

const targetColumns = `id, url, domain, title, detected_at, last_scanned, scan_count,
	status, risk_score, risk_level, external_risk, content_hash, language, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (model.Target, error) {
	var (
		t                     model.Target
		detected, lastScanned string
		status, level, ext    string
	)
	err := row.Scan(
		&t.ID,
		&t.URL,
		&t.Domain,
		&t.Title,
		&detected,
		&lastScanned,
		&t.ScanCount,
		&status,
		&t.RiskScore,
		&level,
		&ext,
		&t.ContentHash,
		&t.Language,
		&t.Notes,
	)
	if err != nil {
		return t, err
	}
	t.DetectedAt = parseTimestamp(detected)
	t.LastScanned = parseTimestamp(lastScanned)
	t.Status = model.TargetStatus(status)
	t.RiskLevel = model.RiskLevel(level)
	t.ExternalRisk = model.ExternalRisk(ext)
	return t, nil
}

// GetTarget returns the target with the given id, or ErrTargetNotFound.
func (s *Store) GetTarget(ctx context.Context, id int64) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+targetColumns+" FROM targets WHERE id = ?", id)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrTargetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &t, nil
}

// GetTargetByURL returns the target stored under url, or ErrTargetNotFound.
func (s *Store) GetTargetByURL(ctx context.Context, url string) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+targetColumns+" FROM targets WHERE url = ?", url)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &t, nil
}

// TargetFilter narrows ListTargets. Zero values match everything.
type TargetFilter struct {
	// Query matches url, domain or title as a substring.
	Query string
	// Level matches risk_level exactly.
	Level model.RiskLevel
	// External matches external_risk exactly.
	External model.ExternalRisk
	// Tech keeps targets with a technology of this name.
	Tech string
	// Limit caps the result; zero means DefaultListLimit.
	Limit int
}

// ListTargets returns targets ordered by risk score, most recently
// detected first among equal scores.
func (s *Store) ListTargets(ctx context.Context, f TargetFilter) ([]model.Target, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		where = append(where, "(url LIKE ? OR domain LIKE ? OR title LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Level != "" {
		where = append(where, "risk_level = ?")
		args = append(args, string(f.Level))
	}
	if f.External != "" {
		where = append(where, "external_risk = ?")
		args = append(args, string(f.External))
	}
	if f.Tech != "" {
		where = append(where, "EXISTS (SELECT 1 FROM tech WHERE tech.target_id = targets.id AND tech.name = ?)")
		args = append(args, f.Tech)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := "SELECT " + targetColumns + " FROM targets"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY risk_score DESC, detected_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	targets := make([]model.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// DeleteTarget removes a target and, through cascading keys, all of its
// child rows. It reports whether a row was deleted.
func (s *Store) DeleteTarget(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM targets WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete target: %w", err)
	}
	return n > 0, nil
}

// DeleteTargets removes every listed target and returns how many existed.
func (s *Store) DeleteTargets(ctx context.Context, ids []int64) (int, error) {
	deleted := 0
	for _, id := range ids {
		ok, err := s.DeleteTarget(ctx, id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteErrored removes every target whose last visit failed and returns
// their ids so callers can drop state keyed by them.
func (s *Store) DeleteErrored(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "DELETE FROM targets WHERE status = ? RETURNING id", string(model.StatusError))
	if err != nil {
		return nil, fmt.Errorf("failed to delete errored targets: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to delete errored targets: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to delete errored targets: %w", err)
	}
	return ids, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/onionwatch/internal/model"
)

// NewLink is a frontier entry to record.
type NewLink struct {
	URL    string
	Domain string
}

// LinkCounts summarizes the frontier.
type LinkCounts struct {
	Total   int `json:"total_links"`
	Pending int `json:"pending_links"`
}

// RecordLinks inserts links discovered on sourceID. URLs already in the
// frontier are left untouched, whoever found them first. It returns how
// many rows were new. A sourceID of zero records links without a source.
func (s *Store) RecordLinks(ctx context.Context, sourceID int64, links []NewLink) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	var source any
	if sourceID > 0 {
		source = sourceID
	}
	now := formatTimestamp(s.now())

	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR IGNORE INTO discovered_links (source_id, url, domain, discovered_at) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("failed to prepare link insert: %w", err)
		}
		defer stmt.Close()

		for _, l := range links {
			res, err := stmt.ExecContext(ctx, source, l.URL, l.Domain, now)
			if err != nil {
				return fmt.Errorf("failed to record link: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n > 0 {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

const linkColumns = "id, url, domain, source_id, discovered_at, scanned"

func scanLink(row rowScanner) (model.DiscoveredLink, error) {
	var (
		l          model.DiscoveredLink
		source     sql.NullInt64
		discovered string
		scanned    int
	)
	if err := row.Scan(&l.ID, &l.URL, &l.Domain, &source, &discovered, &scanned); err != nil {
		return l, err
	}
	l.SourceID = source.Int64
	l.DiscoveredAt = parseTimestamp(discovered)
	l.Scanned = scanned == 1
	return l, nil
}

func (s *Store) queryLinks(ctx context.Context, query string, args ...any) ([]model.DiscoveredLink, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	out := make([]model.DiscoveredLink, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// PendingLinks returns up to limit unscanned links, oldest first.
func (s *Store) PendingLinks(ctx context.Context, limit int) ([]model.DiscoveredLink, error) {
	return s.queryLinks(ctx,
		"SELECT "+linkColumns+" FROM discovered_links WHERE scanned = 0 ORDER BY discovered_at ASC, id ASC LIMIT ?",
		limit)
}

// ListLinks returns up to limit links, newest first. A nil scanned matches
// both states.
func (s *Store) ListLinks(ctx context.Context, scanned *bool, limit int) ([]model.DiscoveredLink, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if scanned == nil {
		return s.queryLinks(ctx,
			"SELECT "+linkColumns+" FROM discovered_links ORDER BY discovered_at DESC, id DESC LIMIT ?", limit)
	}
	return s.queryLinks(ctx,
		"SELECT "+linkColumns+" FROM discovered_links WHERE scanned = ? ORDER BY discovered_at DESC, id DESC LIMIT ?",
		boolInt(*scanned), limit)
}

// MarkLinkScanned flags a link as visited.
func (s *Store) MarkLinkScanned(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE discovered_links SET scanned = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark link scanned: %w", err)
	}
	return nil
}

// LinkCounts returns the total and pending frontier sizes.
func (s *Store) LinkCounts(ctx context.Context) (LinkCounts, error) {
	var c LinkCounts
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN scanned = 0 THEN 1 ELSE 0 END), 0) FROM discovered_links",
	).Scan(&c.Total, &c.Pending)
	if err != nil {
		return c, fmt.Errorf("failed to count links: %w", err)
	}
	return c, nil
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nao1215/onionwatch/internal/model"
)

// Children are the per-visit collections of a target. They are computed
// fresh on every visit and replace the stored ones wholesale.
type Children struct {
	Tech     []model.TechSignature
	Keywords []model.KeywordMatch
	Tags     []string
	Wallets  []model.WalletAddress
}

// ReplaceChildren replaces every child collection of a target in a single
// transaction.
func (s *Store) ReplaceChildren(ctx context.Context, targetID int64, c Children) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := replaceTech(ctx, tx, targetID, c.Tech); err != nil {
			return err
		}
		if err := replaceKeywords(ctx, tx, targetID, c.Keywords); err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, targetID, c.Tags); err != nil {
			return err
		}
		return replaceWallets(ctx, tx, targetID, c.Wallets)
	})
}

// ReplaceTech replaces the detected technologies of a target.
func (s *Store) ReplaceTech(ctx context.Context, targetID int64, tech []model.TechSignature) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceTech(ctx, tx, targetID, tech)
	})
}

// ReplaceKeywords replaces the threat keyword matches of a target.
func (s *Store) ReplaceKeywords(ctx context.Context, targetID int64, keywords []model.KeywordMatch) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceKeywords(ctx, tx, targetID, keywords)
	})
}

// ReplaceTags replaces the category tags of a target. Duplicates are stored
// once.
func (s *Store) ReplaceTags(ctx context.Context, targetID int64, tags []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceTags(ctx, tx, targetID, tags)
	})
}

// ReplaceWallets replaces the wallet addresses of a target.
func (s *Store) ReplaceWallets(ctx context.Context, targetID int64, wallets []model.WalletAddress) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceWallets(ctx, tx, targetID, wallets)
	})
}

func replaceTech(ctx context.Context, tx *sql.Tx, targetID int64, tech []model.TechSignature) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM tech WHERE target_id = ?", targetID); err != nil {
		return fmt.Errorf("failed to clear tech: %w", err)
	}
	for _, t := range tech {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tech (target_id, name, category, version, confidence, source) VALUES (?, ?, ?, ?, ?, ?)",
			targetID, t.Name, t.Category, t.Version, t.Confidence, t.Source)
		if err != nil {
			return fmt.Errorf("failed to insert tech: %w", err)
		}
	}
	return nil
}

func replaceKeywords(ctx context.Context, tx *sql.Tx, targetID int64, keywords []model.KeywordMatch) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM threat_keywords WHERE target_id = ?", targetID); err != nil {
		return fmt.Errorf("failed to clear keywords: %w", err)
	}
	for _, k := range keywords {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO threat_keywords (target_id, keyword, category, severity, count) VALUES (?, ?, ?, ?, ?)",
			targetID, k.Keyword, k.Category, k.Severity.String(), k.Count)
		if err != nil {
			return fmt.Errorf("failed to insert keyword: %w", err)
		}
	}
	return nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, targetID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE target_id = ?", targetID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := tx.ExecContext(ctx, "INSERT INTO tags (target_id, tag) VALUES (?, ?)", targetID, tag); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

func replaceWallets(ctx context.Context, tx *sql.Tx, targetID int64, wallets []model.WalletAddress) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM wallets WHERE target_id = ?", targetID); err != nil {
		return fmt.Errorf("failed to clear wallets: %w", err)
	}
	for _, w := range wallets {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO wallets (target_id, coin, address, addr_type) VALUES (?, ?, ?, ?)",
			targetID, w.Coin, w.Address, w.Type)
		if err != nil {
			return fmt.Errorf("failed to insert wallet: %w", err)
		}
	}
	return nil
}

// UpsertThreatIntel stores the external intel of a target, replacing any
// earlier row for it.
func (s *Store) UpsertThreatIntel(ctx context.Context, targetID int64, in model.ExternalIntel) error {
	tags, err := json.Marshal(nonNil(in.URLTags))
	if err != nil {
		return fmt.Errorf("failed to encode url tags: %w", err)
	}
	sources, err := json.Marshal(nonNil(in.Sources))
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	checked := in.CheckedAt
	if checked.IsZero() {
		checked = s.now()
	}

	query := `
	INSERT INTO threat_intel (target_id, url_found, url_status, url_threat, url_tags,
		host_found, host_url_count, engine_found, malicious, suspicious, harmless,
		malicious_flag, suspicious_flag, external_risk, sources, checked_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(target_id) DO UPDATE SET
		url_found = excluded.url_found,
		url_status = excluded.url_status,
		url_threat = excluded.url_threat,
		url_tags = excluded.url_tags,
		host_found = excluded.host_found,
		host_url_count = excluded.host_url_count,
		engine_found = excluded.engine_found,
		malicious = excluded.malicious,
		suspicious = excluded.suspicious,
		harmless = excluded.harmless,
		malicious_flag = excluded.malicious_flag,
		suspicious_flag = excluded.suspicious_flag,
		external_risk = excluded.external_risk,
		sources = excluded.sources,
		checked_at = excluded.checked_at
	`
	_, err = s.db.ExecContext(ctx, query,
		targetID,
		boolInt(in.URLFound), in.URLStatus, in.URLThreat, string(tags),
		boolInt(in.HostFound), in.HostURLCount,
		boolInt(in.EngineFound), in.Malicious, in.Suspicious, in.Harmless,
		boolInt(in.MaliciousFlag), boolInt(in.SuspiciousFlag),
		string(in.ExternalRisk), string(sources),
		formatTimestamp(checked),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert threat intel: %w", err)
	}
	return nil
}

// GetThreatIntel returns the stored intel of a target, or nil when no
// lookup has been recorded.
func (s *Store) GetThreatIntel(ctx context.Context, targetID int64) (*model.ExternalIntel, error) {
	query := `
	SELECT url_found, url_status, url_threat, url_tags, host_found, host_url_count,
		engine_found, malicious, suspicious, harmless, malicious_flag, suspicious_flag,
		external_risk, sources, checked_at
	FROM threat_intel WHERE target_id = ?
	`
	var (
		in                               model.ExternalIntel
		urlFound, hostFound, engineFound int
		malFlag, susFlag                 int
		tags, sources, ext, checked      string
	)
	err := s.db.QueryRowContext(ctx, query, targetID).Scan(
		&urlFound, &in.URLStatus, &in.URLThreat, &tags, &hostFound, &in.HostURLCount,
		&engineFound, &in.Malicious, &in.Suspicious, &in.Harmless, &malFlag, &susFlag,
		&ext, &sources, &checked,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get threat intel: %w", err)
	}
	in.URLFound = urlFound == 1
	in.HostFound = hostFound == 1
	in.EngineFound = engineFound == 1
	in.MaliciousFlag = malFlag == 1
	in.SuspiciousFlag = susFlag == 1
	in.ExternalRisk = model.ExternalRisk(ext)
	in.CheckedAt = parseTimestamp(checked)
	if err := json.Unmarshal([]byte(tags), &in.URLTags); err != nil {
		return nil, fmt.Errorf("failed to parse url tags: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &in.Sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	return &in, nil
}

// AddScreenshot appends a screenshot record to a target.
func (s *Store) AddScreenshot(ctx context.Context, targetID int64, shot model.Screenshot) error {
	created := shot.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO screenshots (target_id, path, width, height, ocr_text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		targetID, shot.Path, shot.Width, shot.Height, shot.OCRText, formatTimestamp(created))
	if err != nil {
		return fmt.Errorf("failed to add screenshot: %w", err)
	}
	return nil
}

// GetDetail returns a target with all of its child collections.
func (s *Store) GetDetail(ctx context.Context, id int64) (*model.TargetDetail, error) {
	t, err := s.GetTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.loadDetail(ctx, *t)
}

func (s *Store) loadDetail(ctx context.Context, t model.Target) (*model.TargetDetail, error) {
	d := &model.TargetDetail{Target: t}
	var err error
	if d.Tech, err = s.listTech(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.Keywords, err = s.listKeywords(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.Tags, err = s.listTags(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.Wallets, err = s.listTargetWallets(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.Screenshots, err = s.listScreenshots(ctx, t.ID); err != nil {
		return nil, err
	}
	if d.Intel, err = s.GetThreatIntel(ctx, t.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) listTech(ctx context.Context, targetID int64) ([]model.TechSignature, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, category, version, confidence, source FROM tech WHERE target_id = ? ORDER BY id", targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tech: %w", err)
	}
	defer rows.Close()

	out := make([]model.TechSignature, 0)
	for rows.Next() {
		var t model.TechSignature
		if err := rows.Scan(&t.Name, &t.Category, &t.Version, &t.Confidence, &t.Source); err != nil {
			return nil, fmt.Errorf("failed to scan tech: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) listKeywords(ctx context.Context, targetID int64) ([]model.KeywordMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, category, severity, count FROM threat_keywords
		WHERE target_id = ?
		ORDER BY CASE severity WHEN 'critical' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 ELSE 4 END,
			count DESC, id`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	out := make([]model.KeywordMatch, 0)
	for rows.Next() {
		var (
			k        model.KeywordMatch
			severity string
		)
		if err := rows.Scan(&k.Keyword, &k.Category, &severity, &k.Count); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		if k.Severity, err = model.ParseSeverity(severity); err != nil {
			return nil, fmt.Errorf("failed to parse keyword severity: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) listTags(ctx context.Context, targetID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM tags WHERE target_id = ? ORDER BY tag", targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

func (s *Store) listTargetWallets(ctx context.Context, targetID int64) ([]model.WalletAddress, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT coin, address, addr_type FROM wallets WHERE target_id = ? ORDER BY coin, address", targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	out := make([]model.WalletAddress, 0)
	for rows.Next() {
		var w model.WalletAddress
		if err := rows.Scan(&w.Coin, &w.Address, &w.Type); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) listScreenshots(ctx context.Context, targetID int64) ([]model.Screenshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, width, height, ocr_text, created_at FROM screenshots WHERE target_id = ? ORDER BY created_at DESC, id DESC",
		targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenshots: %w", err)
	}
	defer rows.Close()

	out := make([]model.Screenshot, 0)
	for rows.Next() {
		var (
			shot    model.Screenshot
			created string
		)
		if err := rows.Scan(&shot.Path, &shot.Width, &shot.Height, &shot.OCRText, &created); err != nil {
			return nil, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		shot.CreatedAt = parseTimestamp(created)
		out = append(out, shot)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package database

import (
	"context"
	"fmt"

	"github.com/nao1215/onionwatch/internal/model"
)

// AppendAlert appends one alert delivery outcome to the audit log.
func (s *Store) AppendAlert(ctx context.Context, e model.AlertEvent) error {
	at := e.SentAt
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO alert_log (target_id, channel, risk_level, sent, reason, sent_at) VALUES (?, ?, ?, ?, ?, ?)",
		e.TargetID, e.Channel, string(e.RiskLevel), boolInt(e.Sent), e.Reason, formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("failed to append alert: %w", err)
	}
	return nil
}

// ListAlerts returns the most recent alert rows of a target.
func (s *Store) ListAlerts(ctx context.Context, targetID int64, limit int) ([]model.AlertEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id, channel, risk_level, sent, reason, sent_at FROM alert_log
		WHERE target_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	out := make([]model.AlertEvent, 0)
	for rows.Next() {
		var (
			e         model.AlertEvent
			level, at string
			sent      int
		)
		if err := rows.Scan(&e.TargetID, &e.Channel, &level, &sent, &e.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		e.RiskLevel = model.RiskLevel(level)
		e.Sent = sent == 1
		e.SentAt = parseTimestamp(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MaxRescanDetail is the longest detail stored in the rescan log.
const MaxRescanDetail = 500

// AppendRescanLog appends one scheduler firing to the audit log. Details
// longer than MaxRescanDetail characters are truncated.
func (s *Store) AppendRescanLog(ctx context.Context, l model.RescanLog) error {
	at := l.RanAt
	if at.IsZero() {
		at = s.now()
	}
	detail := []rune(l.Detail)
	if len(detail) > MaxRescanDetail {
		detail = detail[:MaxRescanDetail]
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rescan_log (target_id, url, status, detail, ran_at) VALUES (?, ?, ?, ?, ?)",
		l.TargetID, l.URL, string(l.Status), string(detail), formatTimestamp(at))
	if err != nil {
		return fmt.Errorf("failed to append rescan log: %w", err)
	}
	return nil
}

// ListRescanLog returns the most recent scheduler firings, newest first.
func (s *Store) ListRescanLog(ctx context.Context, limit int) ([]model.RescanLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT target_id, url, status, detail, ran_at FROM rescan_log ORDER BY ran_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rescan log: %w", err)
	}
	defer rows.Close()

	out := make([]model.RescanLog, 0)
	for rows.Next() {
		var (
			l          model.RescanLog
			status, at string
		)
		if err := rows.Scan(&l.TargetID, &l.URL, &status, &l.Detail, &at); err != nil {
			return nil, fmt.Errorf("failed to scan rescan log: %w", err)
		}
		l.Status = model.RescanStatus(status)
		l.RanAt = parseTimestamp(at)
		out = append(out, l)
	}
	return out, rows.Err()
}

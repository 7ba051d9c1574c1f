package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
)

// topThreatLimit is how many categories Stats reports.
const topThreatLimit = 8

// CategoryCount is the number of keyword matches in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"c"`
}

// CoinCount is the number of distinct addresses of one coin.
type CoinCount struct {
	Coin  string `json:"coin"`
	Count int    `json:"c"`
}

// KeywordCount is how many targets matched a keyword.
type KeywordCount struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Targets  int    `json:"targets"`
	Hits     int    `json:"hits"`
}

// Stats is the dashboard summary of the store.
type Stats struct {
	Total        int             `json:"total"`
	OK           int             `json:"ok"`
	Errors       int             `json:"errors"`
	Critical     int             `json:"critical"`
	High         int             `json:"high"`
	Medium       int             `json:"medium"`
	Low          int             `json:"low"`
	Clean        int             `json:"clean"`
	Unknown      int             `json:"unknown"`
	PendingLinks int             `json:"pending_links"`
	TotalLinks   int             `json:"total_links"`
	WalletsTotal int             `json:"wallets_total"`
	AlertsSent   int             `json:"alerts_sent"`
	TopThreats   []CategoryCount `json:"top_threats"`
	TopCoins     []CoinCount     `json:"top_coins"`
}

// LevelCount returns the number of targets at level.
func (st Stats) LevelCount(level model.RiskLevel) int {
	switch level {
	case model.RiskCritical:
		return st.Critical
	case model.RiskHigh:
		return st.High
	case model.RiskMedium:
		return st.Medium
	case model.RiskLow:
		return st.Low
	case model.RiskClean:
		return st.Clean
	case model.RiskUnknown:
		return st.Unknown
	default:
		return 0
	}
}

// Stats computes the dashboard summary.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		TopThreats: make([]CategoryCount, 0),
		TopCoins:   make([]CoinCount, 0),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status = 'ok'), 0),
			COALESCE(SUM(status = 'error'), 0),
			COALESCE(SUM(risk_level = 'critical'), 0),
			COALESCE(SUM(risk_level = 'high'), 0),
			COALESCE(SUM(risk_level = 'medium'), 0),
			COALESCE(SUM(risk_level = 'low'), 0),
			COALESCE(SUM(risk_level = 'clean'), 0),
			COALESCE(SUM(risk_level = 'unknown'), 0)
		FROM targets`,
	).Scan(&st.Total, &st.OK, &st.Errors, &st.Critical, &st.High, &st.Medium, &st.Low, &st.Clean, &st.Unknown)
	if err != nil {
		return nil, fmt.Errorf("failed to count targets: %w", err)
	}

	links, err := s.LinkCounts(ctx)
	if err != nil {
		return nil, err
	}
	st.PendingLinks, st.TotalLinks = links.Pending, links.Total

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM wallets").Scan(&st.WalletsTotal); err != nil {
		return nil, fmt.Errorf("failed to count wallets: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_log WHERE sent = 1").Scan(&st.AlertsSent); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS c FROM threat_keywords
		GROUP BY category ORDER BY c DESC, category LIMIT ?`, topThreatLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank threats: %w", err)
	}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan threat count: %w", err)
		}
		st.TopThreats = append(st.TopThreats, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	coins, err := s.CoinCounts(ctx)
	if err != nil {
		return nil, err
	}
	st.TopCoins = coins
	return st, nil
}

// CoinCounts returns the number of distinct addresses per coin, largest
// first.
func (s *Store) CoinCounts(ctx context.Context) ([]CoinCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coin, COUNT(DISTINCT address) AS c FROM wallets
		GROUP BY coin ORDER BY c DESC, coin`)
	if err != nil {
		return nil, fmt.Errorf("failed to rank coins: %w", err)
	}
	defer rows.Close()

	out := make([]CoinCount, 0)
	for rows.Next() {
		var c CoinCount
		if err := rows.Scan(&c.Coin, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan coin count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// WalletRow is a wallet address joined with the target it was found on.
type WalletRow struct {
	model.WalletAddress

	TargetID  int64           `json:"target_id"`
	Domain    string          `json:"domain"`
	Title     string          `json:"title"`
	RiskLevel model.RiskLevel `json:"risk_level"`
}

// ListWallets returns wallet addresses, riskiest targets first. An empty
// coin matches every coin; query matches the address or the domain.
func (s *Store) ListWallets(ctx context.Context, coin, query string, limit int) ([]WalletRow, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	sqlText := `
		SELECT w.coin, w.address, w.addr_type, t.id, t.domain, t.title, t.risk_level
		FROM wallets w JOIN targets t ON w.target_id = t.id WHERE 1=1`
	var args []any
	if coin != "" {
		sqlText += " AND w.coin = ?"
		args = append(args, strings.ToUpper(coin))
	}
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + q + "%"
		sqlText += " AND (w.address LIKE ? OR t.domain LIKE ?)"
		args = append(args, like, like)
	}
	sqlText += " ORDER BY t.risk_score DESC, w.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	out := make([]WalletRow, 0)
	for rows.Next() {
		var (
			w     WalletRow
			level string
		)
		if err := rows.Scan(&w.Coin, &w.Address, &w.Type, &w.TargetID, &w.Domain, &w.Title, &level); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		w.RiskLevel = model.RiskLevel(level)
		out = append(out, w)
	}
	return out, rows.Err()
}

// TopKeywords returns the keywords matched on the most targets.
func (s *Store) TopKeywords(ctx context.Context, limit int) ([]KeywordCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, category, severity, COUNT(DISTINCT target_id) AS targets, SUM(count) AS hits
		FROM threat_keywords
		GROUP BY keyword, category, severity
		ORDER BY targets DESC, hits DESC, keyword
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank keywords: %w", err)
	}
	defer rows.Close()

	out := make([]KeywordCount, 0)
	for rows.Next() {
		var k KeywordCount
		if err := rows.Scan(&k.Keyword, &k.Category, &k.Severity, &k.Targets, &k.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan keyword count: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ExportAll returns every target with its child collections, highest risk
// score first.
func (s *Store) ExportAll(ctx context.Context) ([]model.TargetDetail, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+targetColumns+" FROM targets ORDER BY risk_score DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to export targets: %w", err)
	}
	targets := make([]model.Target, 0)
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Children are loaded after the cursor is closed: the pool has a single
	// connection.
	out := make([]model.TargetDetail, 0, len(targets))
	for _, t := range targets {
		d, err := s.loadDetail(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

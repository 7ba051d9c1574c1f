package frontier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/onionwatch/internal/crawler"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
)

// DefaultPullLimit is the number of links Pull returns when no limit is given.
const DefaultPullLimit = 50

// Store is the persistence the frontier needs.
// *database.Store implements it.
type Store interface {
	RecordLinks(ctx context.Context, sourceID int64, links []database.NewLink) (int, error)
	PendingLinks(ctx context.Context, limit int) ([]model.DiscoveredLink, error)
	MarkLinkScanned(ctx context.Context, id int64) error
	LinkCounts(ctx context.Context) (database.LinkCounts, error)
}

// Manager records and hands out frontier links.
type Manager struct {
	store    Store
	logger   *slog.Logger
	observer func(added int)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithObserver registers a callback that receives the number of new links
// after every successful Record.
func WithObserver(fn func(added int)) Option {
	return func(m *Manager) {
		m.observer = fn
	}
}

// NewManager creates a frontier manager on top of store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record stores the links found on sourceID and returns how many were new.
// Links already in the frontier are ignored, as are duplicates within urls.
func (m *Manager) Record(ctx context.Context, sourceID int64, urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	seen := make(map[string]struct{}, len(urls))
	links := make([]database.NewLink, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		links = append(links, database.NewLink{URL: u, Domain: crawler.Domain(u)})
	}

	added, err := m.store.RecordLinks(ctx, sourceID, links)
	if err != nil {
		return 0, fmt.Errorf("failed to record frontier links: %w", err)
	}
	if added > 0 {
		m.logger.Debug("frontier grew", "source_id", sourceID, "new", added, "seen", len(links))
	}
	if m.observer != nil {
		m.observer(added)
	}
	return added, nil
}

// Pull returns up to limit pending links, oldest first. A limit of zero or
// less means DefaultPullLimit.
func (m *Manager) Pull(ctx context.Context, limit int) ([]model.DiscoveredLink, error) {
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	links, err := m.store.PendingLinks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to pull frontier links: %w", err)
	}
	return links, nil
}

// MarkScanned removes a link from the pending queue.
func (m *Manager) MarkScanned(ctx context.Context, id int64) error {
	if err := m.store.MarkLinkScanned(ctx, id); err != nil {
		return fmt.Errorf("failed to mark link %d scanned: %w", id, err)
	}
	return nil
}

// Counts returns the total and pending frontier sizes.
func (m *Manager) Counts(ctx context.Context) (database.LinkCounts, error) {
	return m.store.LinkCounts(ctx)
}

package synchronizer

import (
	"context"
	"sync"

	"github.com/coin-pulse/pkg/models"
	"github.com/sirupsen/logrus"
)

// ErrAssetsMessage is shown when a page of assets cannot be fetched
const ErrAssetsMessage = "Failed to fetch assets. Please try again."

// PageFetcher returns one snapshot page
type PageFetcher interface {
	FetchPage(ctx context.Context, pageNumber, pageSize int) (models.Page, error)
}

// ListState is a point-in-time view of an AssetList
type ListState struct {
	Assets      []models.AssetSummary `json:"assets" yaml:"assets"`
	Loading     bool                  `json:"loading" yaml:"loading"`
	LoadingMore bool                  `json:"loading_more" yaml:"loading_more"`
	HasMore     bool                  `json:"has_more" yaml:"has_more"`
	Error       string                `json:"error,omitempty" yaml:"error,omitempty"`
	Page        int                   `json:"page" yaml:"page"`
}

// AssetList drives paginated loading of the asset list
type AssetList struct {
	fetcher  PageFetcher
	pageSize int
	logger   *logrus.Entry

	mu          sync.Mutex
	assets      []models.AssetSummary
	page        int
	loading     bool
	loadingMore bool
	hasMore     bool
	err         string
}

// NewAssetList creates an idle list
func NewAssetList(fetcher PageFetcher, pageSize int, logger *logrus.Logger) *AssetList {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &AssetList{
		fetcher:  fetcher,
		pageSize: pageSize,
		logger:   logger.WithField("component", "asset-list"),
	}
}

// Load fetches the first page, replacing any loaded assets. A failure leaves
// the list empty with an error message and is not retried.
func (l *AssetList) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.err = ""
	l.mu.Unlock()

	page, err := l.fetcher.FetchPage(ctx, 1, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		l.logger.WithError(err).WithField("page", 1).Error("Failed to load assets")
		l.assets = nil
		l.page = 0
		l.hasMore = false
		l.err = ErrAssetsMessage
		return err
	}

	l.assets = page.Assets
	l.page = 1
	l.hasMore = page.HasMore
	return nil
}

// LoadMore appends the next page. It is a no-op while a load is in flight or
// when there are no more pages.
func (l *AssetList) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || l.loadingMore || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	l.loadingMore = true
	next := l.page + 1
	l.mu.Unlock()

	page, err := l.fetcher.FetchPage(ctx, next, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadingMore = false

	if err != nil {
		l.logger.WithError(err).WithField("page", next).Error("Failed to load more assets")
		l.err = ErrAssetsMessage
		return err
	}

	l.assets = append(l.assets, page.Assets...)
	l.page = next
	l.hasMore = page.HasMore
	l.err = ""
	return nil
}

// ApplyTick overwrites the live price and percent change of every loaded
// asset with the tick's symbol. It reports whether any row changed.
func (l *AssetList) ApplyTick(tick models.Tick) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.assets {
		if l.assets[i].Symbol == tick.Symbol {
			l.assets[i].Price = tick.Price
			l.assets[i].PriceChangePercent = tick.PriceChangePercent
			changed = true
		}
	}
	return changed
}

// Symbols returns the symbols of the loaded assets in order
func (l *AssetList) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.assets))
	for i, a := range l.assets {
		out[i] = a.Symbol
	}
	return out
}

// State returns a copy of the current list state
func (l *AssetList) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets := make([]models.AssetSummary, len(l.assets))
	copy(assets, l.assets)

	return ListState{
		Assets:      assets,
		Loading:     l.loading,
		LoadingMore: l.loadingMore,
		HasMore:     l.hasMore,
		Error:       l.err,
		Page:        l.page,
	}
}

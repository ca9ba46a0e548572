package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/clipfeed/clipfeed/pkg/youtube"
)

// IconBatchSize is the number of channel ids resolved per upstream call.
const IconBatchSize = 50

// ChannelClient resolves one batch of channel ids to icon references.
type ChannelClient interface {
	ChannelsByIDs(ctx context.Context, ids []string) ([]youtube.ChannelDetail, error)
}

// IconResolver resolves channel icons with a coarse-grained cache. The cache
// expires as a whole after the freshness window, not per entry; a request that
// the cache cannot fully serve refetches the complete requested set. An entry
// holding nil means the channel was looked up and has no icon, which is
// distinct from the channel never having been looked up at all.
type IconResolver struct {
	client ChannelClient
	window time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	entries   map[string]*string
	fetchedAt time.Time
}

// NewIconResolver creates a resolver with the given whole-cache freshness
// window.
func NewIconResolver(client ChannelClient, window time.Duration) *IconResolver {
	return &IconResolver{
		client:  client,
		window:  window,
		now:     time.Now,
		entries: map[string]*string{},
	}
}

// Resolve returns icon references for the requested channel ids. Served
// straight from cache when the cache is fresh and covers every requested id;
// otherwise the full requested set is refetched in batches and merged in.
// Ids whose batch failed and that were never cached before stay absent.
func (r *IconResolver) Resolve(ctx context.Context, channelIDs []string) (map[string]*string, error) {
	if len(channelIDs) == 0 {
		return map[string]*string{}, nil
	}

	if cached, ok := r.fromCache(channelIDs); ok {
		lgr.Printf("[DEBUG] %d channel icons served from cache", len(cached))
		return cached, nil
	}

	fetched := make(map[string]*string)
	for start := 0; start < len(channelIDs); start += IconBatchSize {
		end := start + IconBatchSize
		if end > len(channelIDs) {
			end = len(channelIDs)
		}
		batch := channelIDs[start:end]

		records, err := r.client.ChannelsByIDs(ctx, batch)
		if err != nil {
			lgr.Printf("[WARN] channel batch of %d ids failed, skipped: %v", len(batch), err)
			continue
		}
		for _, rec := range records {
			fetched[rec.ChannelID] = rec.Icon
		}
	}

	merged := r.merge(fetched)

	result := make(map[string]*string, len(channelIDs))
	for _, id := range channelIDs {
		if icon, ok := merged[id]; ok {
			result[id] = icon
		}
	}
	return result, nil
}

// fromCache returns the requested subset when the cache is non-empty, fresh
// and has an entry for every requested id.
func (r *IconResolver) fromCache(channelIDs []string) (map[string]*string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 || r.now().Sub(r.fetchedAt) >= r.window {
		return nil, false
	}

	result := make(map[string]*string, len(channelIDs))
	for _, id := range channelIDs {
		icon, ok := r.entries[id]
		if !ok {
			return nil, false
		}
		result[id] = icon
	}
	return result, true
}

// merge swaps in a new cache map combining old entries with the freshly
// fetched ones (new values win), resets the cache timestamp and returns the
// merged map. The swap is a single assignment so concurrent readers never
// observe a half-updated cache.
func (r *IconResolver) merge(fetched map[string]*string) map[string]*string {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make(map[string]*string, len(r.entries)+len(fetched))
	for id, icon := range r.entries {
		merged[id] = icon
	}
	for id, icon := range fetched {
		merged[id] = icon
	}
	r.entries = merged
	r.fetchedAt = r.now()
	return merged
}

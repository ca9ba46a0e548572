// Package aggregator implements the clip aggregation pipeline: fan-out over
// configured playlists, cross-playlist deduplication, batched detail and
// channel icon enrichment, and short-form filtering. Per-source and per-batch
// failures degrade to partial results; only a total failure such as a missing
// credential reaches the caller as an error.
package aggregator

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/clipfeed/clipfeed/pkg/domain"
)

// epochFloor is the publishedAfter bound for the exception and recommended
// playlists, wide enough to cover their full history.
var epochFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// SourceClient fetches all entries of one playlist inside a publish window.
type SourceClient interface {
	CheckCredential() error
	PlaylistItems(ctx context.Context, playlistID string, after, before time.Time) ([]domain.PlaylistEntry, error)
}

// Config holds orchestrator settings.
type Config struct {
	Playlists   []string      // regular playlists, fetched with the lookback window
	Exception   string        // playlist merged into the general set with full history
	Recommended string        // playlist forming the recommended set, full history
	Lookback    time.Duration // publish window for regular playlists, default 30 days
	MaxFetchers int           // concurrent playlist fetches, default 8
}

// Service orchestrates one aggregation run.
type Service struct {
	client      SourceClient
	enricher    *Enricher
	icons       *IconResolver
	playlists   []string
	exception   string
	recommended string
	lookback    time.Duration
	maxFetchers int
	now         func() time.Time
}

// NewService creates the aggregation orchestrator.
func NewService(client SourceClient, enricher *Enricher, icons *IconResolver, cfg Config) *Service {
	if cfg.Lookback == 0 {
		cfg.Lookback = 30 * 24 * time.Hour
	}
	if cfg.MaxFetchers == 0 {
		cfg.MaxFetchers = 8
	}
	return &Service{
		client:      client,
		enricher:    enricher,
		icons:       icons,
		playlists:   cfg.Playlists,
		exception:   cfg.Exception,
		recommended: cfg.Recommended,
		lookback:    cfg.Lookback,
		maxFetchers: cfg.MaxFetchers,
		now:         time.Now,
	}
}

// Aggregate runs the full pipeline and returns the general and recommended
// video sets, both deduplicated, enriched and with short-form clips removed.
// Output order follows first-seen candidate order; sorting is left to the
// consumer.
func (s *Service) Aggregate(ctx context.Context) (general, recommended []domain.Video, err error) {
	if err := s.client.CheckCredential(); err != nil {
		return nil, nil, err
	}

	now := s.now()
	after := now.Add(-s.lookback)

	lgr.Printf("[INFO] aggregation started, %d regular playlists, window since %s", len(s.playlists), after.Format(time.RFC3339))

	regular := make([][]domain.PlaylistEntry, len(s.playlists))
	var exception, recommendedEntries []domain.PlaylistEntry

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxFetchers)

	for i, playlistID := range s.playlists {
		g.Go(func() error {
			regular[i] = s.fetchSource(gctx, playlistID, after, now)
			return nil
		})
	}
	g.Go(func() error {
		exception = s.fetchSource(gctx, s.exception, epochFloor, now)
		return nil
	})
	g.Go(func() error {
		recommendedEntries = s.fetchSource(gctx, s.recommended, epochFloor, now)
		return nil
	})
	_ = g.Wait() // fetch goroutines never return errors, failures degrade to empty

	// regular playlists in configured order, exception appended last
	merged := make([]domain.PlaylistEntry, 0, 256)
	for _, entries := range regular {
		merged = append(merged, entries...)
	}
	merged = append(merged, exception...)

	generalCandidates := Dedupe(merged)
	recommendedCandidates := Dedupe(recommendedEntries)
	lgr.Printf("[INFO] %d general and %d recommended candidates after dedup", len(generalCandidates), len(recommendedCandidates))

	// one enrichment pass over the union keeps the batch count down when the
	// two candidate sets overlap
	idsUnion := unionIDs(generalCandidates, recommendedCandidates)
	details, err := s.enricher.Enrich(ctx, idsUnion)
	if err != nil {
		return nil, nil, err
	}

	icons, err := s.icons.Resolve(ctx, channelIDs(details))
	if err != nil {
		return nil, nil, err
	}
	for id, video := range details {
		if icon, ok := icons[video.ChannelID]; ok {
			video.ChannelIcon = icon
			details[id] = video
		}
	}

	general = s.assemble(generalCandidates, details)
	recommended = s.assemble(recommendedCandidates, details)
	lgr.Printf("[INFO] aggregation done, %d general and %d recommended videos", len(general), len(recommended))
	return general, recommended, nil
}

// fetchSource fetches one playlist, degrading any failure to an empty result
// so a single broken source never aborts the whole run.
func (s *Service) fetchSource(ctx context.Context, playlistID string, after, before time.Time) []domain.PlaylistEntry {
	if playlistID == "" {
		return nil
	}
	entries, err := s.client.PlaylistItems(ctx, playlistID, after, before)
	if err != nil {
		lgr.Printf("[WARN] playlist %s fetch failed, treated as empty: %v", playlistID, err)
		return nil
	}
	return entries
}

// assemble joins candidate entries with their enriched details in candidate
// order, dropping entries without a detail record and short-form clips. The
// enrichment record is canonical for title and thumbnail once present; the
// playlist entry fills the gaps.
func (s *Service) assemble(candidates []domain.PlaylistEntry, details map[string]domain.Video) []domain.Video {
	out := make([]domain.Video, 0, len(candidates))
	for _, entry := range candidates {
		video, ok := details[entry.VideoID]
		if !ok || video.IsShort {
			continue
		}
		if video.Title == "" {
			video.Title = entry.Title
		}
		if video.Thumbnail == "" {
			video.Thumbnail = entry.Thumbnail
		}
		out = append(out, video)
	}
	return out
}

// unionIDs collects video ids across candidate sets, first occurrence wins.
func unionIDs(sets ...[]domain.PlaylistEntry) []string {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, set := range sets {
		for _, entry := range set {
			if _, ok := seen[entry.VideoID]; ok {
				continue
			}
			seen[entry.VideoID] = struct{}{}
			ids = append(ids, entry.VideoID)
		}
	}
	return ids
}

// channelIDs collects unique channel ids from enriched details.
func channelIDs(details map[string]domain.Video) []string {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, video := range details {
		if video.ChannelID == "" {
			continue
		}
		if _, ok := seen[video.ChannelID]; ok {
			continue
		}
		seen[video.ChannelID] = struct{}{}
		ids = append(ids, video.ChannelID)
	}
	return ids
}

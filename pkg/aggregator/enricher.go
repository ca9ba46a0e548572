package aggregator

import (
	"context"
	"strconv"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/clipfeed/clipfeed/pkg/domain"
	"github.com/clipfeed/clipfeed/pkg/duration"
	"github.com/clipfeed/clipfeed/pkg/youtube"
)

// DetailBatchSize is the number of video ids resolved per upstream call.
const DetailBatchSize = 30

// DetailClient resolves one batch of video ids to detail records.
type DetailClient interface {
	VideosByIDs(ctx context.Context, ids []string) ([]youtube.VideoDetail, error)
}

// Enricher resolves full video details for sets of video ids using batched
// upstream lookups. Batches are independent, a failed batch is logged and
// skipped without affecting the others.
type Enricher struct {
	client DetailClient
}

// NewEnricher creates an enricher backed by the given detail client.
func NewEnricher(client DetailClient) *Enricher {
	return &Enricher{client: client}
}

// Enrich resolves details for the given ids, keyed by video id. Ids missing
// from every successful batch response are absent from the result; the caller
// treats them as having no detail available. Channel icons are left nil here
// and filled in by a later resolver pass.
func (e *Enricher) Enrich(ctx context.Context, ids []string) (map[string]domain.Video, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if id != "" {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return map[string]domain.Video{}, nil
	}

	details := make(map[string]domain.Video, len(valid))
	for start := 0; start < len(valid); start += DetailBatchSize {
		end := start + DetailBatchSize
		if end > len(valid) {
			end = len(valid)
		}
		batch := valid[start:end]

		records, err := e.client.VideosByIDs(ctx, batch)
		if err != nil {
			lgr.Printf("[WARN] detail batch of %d ids failed, skipped: %v", len(batch), err)
			continue
		}
		for _, rec := range records {
			details[rec.VideoID] = toVideo(rec)
		}
	}

	lgr.Printf("[DEBUG] enriched %d of %d requested videos", len(details), len(valid))
	return details, nil
}

// toVideo converts a wire detail record to the domain video. View count and
// duration parse failures degrade to zero values instead of dropping the
// record.
func toVideo(rec youtube.VideoDetail) domain.Video {
	views, err := strconv.ParseInt(rec.ViewCount, 10, 64)
	if err != nil || views < 0 {
		views = 0
	}
	secs := duration.Seconds(rec.Duration)
	published, _ := time.Parse(time.RFC3339, rec.PublishedAt)

	return domain.Video{
		VideoID:      rec.VideoID,
		ViewCount:    views,
		IsShort:      duration.IsShortSeconds(secs),
		Duration:     rec.Duration,
		Seconds:      secs,
		Published:    published,
		ChannelID:    rec.ChannelID,
		ChannelTitle: rec.ChannelTitle,
		Title:        rec.Title,
		Thumbnail:    rec.Thumbnail,
	}
}

package aggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfeed/clipfeed/pkg/domain"
)

// fakeSourceClient serves playlist entries from a table and records the
// publish window of every fetch.
type fakeSourceClient struct {
	playlists map[string][]domain.PlaylistEntry
	failing   map[string]bool
	credErr   error

	mu      sync.Mutex
	windows map[string][2]time.Time
}

func (f *fakeSourceClient) CheckCredential() error { return f.credErr }

func (f *fakeSourceClient) PlaylistItems(_ context.Context, playlistID string, after, before time.Time) ([]domain.PlaylistEntry, error) {
	f.mu.Lock()
	if f.windows == nil {
		f.windows = map[string][2]time.Time{}
	}
	f.windows[playlistID] = [2]time.Time{after, before}
	f.mu.Unlock()

	if f.failing[playlistID] {
		return nil, fmt.Errorf("simulated source failure")
	}
	return f.playlists[playlistID], nil
}

func entry(videoID, channelID string) domain.PlaylistEntry {
	return domain.PlaylistEntry{
		VideoID:      videoID,
		Title:        "entry " + videoID,
		Thumbnail:    "entry-thumb-" + videoID,
		ChannelID:    channelID,
		ChannelTitle: "channel " + channelID,
	}
}

func testPipeline(source *fakeSourceClient, details *fakeDetailClient, channels *fakeChannelClient, cfg Config) *Service {
	return NewService(source, NewEnricher(details), NewIconResolver(channels, time.Hour), cfg)
}

func TestService_Aggregate(t *testing.T) {
	source := &fakeSourceClient{playlists: map[string][]domain.PlaylistEntry{
		"PL-one":    {entry("v1", "chan-a"), entry("v2", "chan-a")},
		"PL-two":    {entry("v2", "chan-a"), entry("v3", "chan-b")},
		"PL-except": {entry("v4", "chan-c")},
		"PL-rec":    {entry("v2", "chan-a"), entry("v5", "chan-b")},
	}}
	detailRecords := detailTable("v1", "v2", "v3", "v4", "v5")
	rec := detailRecords["v3"]
	rec.Duration = "PT0M45S" // short-form, must be filtered out
	detailRecords["v3"] = rec
	details := &fakeDetailClient{records: detailRecords}
	channels := &fakeChannelClient{icons: map[string]*string{
		"chan-v1": iconURL("https://img/chan-v1.jpg"),
		"chan-v2": iconURL("https://img/chan-v2.jpg"),
		"chan-v4": nil,
		"chan-v5": iconURL("https://img/chan-v5.jpg"),
	}}

	svc := testPipeline(source, details, channels, Config{
		Playlists:   []string{"PL-one", "PL-two"},
		Exception:   "PL-except",
		Recommended: "PL-rec",
		Lookback:    30 * 24 * time.Hour,
	})
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	general, recommended, err := svc.Aggregate(context.Background())
	require.NoError(t, err)

	// v3 is short and dropped, exception playlist comes last
	gotGeneral := make([]string, 0, len(general))
	for _, v := range general {
		gotGeneral = append(gotGeneral, v.VideoID)
	}
	assert.Equal(t, []string{"v1", "v2", "v4"}, gotGeneral)

	gotRecommended := make([]string, 0, len(recommended))
	for _, v := range recommended {
		gotRecommended = append(gotRecommended, v.VideoID)
	}
	assert.Equal(t, []string{"v2", "v5"}, gotRecommended)

	// enrichment is canonical, channel icons are merged in
	assert.Equal(t, "title v1", general[0].Title)
	require.NotNil(t, general[0].ChannelIcon)
	assert.Equal(t, "https://img/chan-v1.jpg", *general[0].ChannelIcon)
	assert.Nil(t, general[2].ChannelIcon) // chan-v4 has no icon

	// regular playlists honor the lookback window, exception and recommended
	// reach back to the epoch floor
	assert.Equal(t, now.Add(-30*24*time.Hour), source.windows["PL-one"][0])
	assert.Equal(t, now.Add(-30*24*time.Hour), source.windows["PL-two"][0])
	assert.Equal(t, epochFloor, source.windows["PL-except"][0])
	assert.Equal(t, epochFloor, source.windows["PL-rec"][0])
	assert.Equal(t, now, source.windows["PL-one"][1])

	// overlapping candidates enriched once through the union
	require.Len(t, details.batches, 1)
	assert.Len(t, details.batches[0], 5)
}

func TestService_Aggregate_PartialSourceFailure(t *testing.T) {
	source := &fakeSourceClient{
		playlists: map[string][]domain.PlaylistEntry{
			"PL-one": {entry("v1", "chan-a")},
			"PL-two": {entry("v2", "chan-b")},
			"PL-rec": {entry("v3", "chan-b")},
		},
		failing: map[string]bool{"PL-two": true, "PL-rec": true},
	}
	details := &fakeDetailClient{records: detailTable("v1", "v2", "v3")}
	channels := &fakeChannelClient{icons: map[string]*string{}}

	svc := testPipeline(source, details, channels, Config{
		Playlists:   []string{"PL-one", "PL-two"},
		Recommended: "PL-rec",
	})

	general, recommended, err := svc.Aggregate(context.Background())
	require.NoError(t, err) // broken sources degrade, never abort the run

	require.Len(t, general, 1)
	assert.Equal(t, "v1", general[0].VideoID)
	assert.Empty(t, recommended)
}

func TestService_Aggregate_CredentialFailure(t *testing.T) {
	source := &fakeSourceClient{credErr: fmt.Errorf("no api key")}
	svc := testPipeline(source, &fakeDetailClient{}, &fakeChannelClient{}, Config{Playlists: []string{"PL-one"}})

	general, recommended, err := svc.Aggregate(context.Background())
	require.Error(t, err)
	assert.Nil(t, general)
	assert.Nil(t, recommended)
	assert.Empty(t, source.windows) // no fetch was attempted
}

func TestService_Aggregate_MissingDetailDropped(t *testing.T) {
	source := &fakeSourceClient{playlists: map[string][]domain.PlaylistEntry{
		"PL-one": {entry("v1", "chan-a"), entry("v2", "chan-a")},
	}}
	details := &fakeDetailClient{records: detailTable("v1")} // v2 unknown upstream
	channels := &fakeChannelClient{icons: map[string]*string{}}

	svc := testPipeline(source, details, channels, Config{Playlists: []string{"PL-one"}})

	general, _, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, "v1", general[0].VideoID)
}

func TestService_Aggregate_EntryFillsMissingDetailFields(t *testing.T) {
	source := &fakeSourceClient{playlists: map[string][]domain.PlaylistEntry{
		"PL-one": {entry("v1", "chan-a")},
	}}
	records := detailTable("v1")
	rec := records["v1"]
	rec.Title = ""
	rec.Thumbnail = ""
	records["v1"] = rec
	details := &fakeDetailClient{records: records}
	channels := &fakeChannelClient{icons: map[string]*string{}}

	svc := testPipeline(source, details, channels, Config{Playlists: []string{"PL-one"}})

	general, _, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, general, 1)
	assert.Equal(t, "entry v1", general[0].Title)
	assert.Equal(t, "entry-thumb-v1", general[0].Thumbnail)
}

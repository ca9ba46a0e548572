package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfeed/clipfeed/pkg/youtube"
)

// fakeChannelClient answers channel lookups from a table; channels present
// with a nil value have no icon, missing channels are unknown upstream.
type fakeChannelClient struct {
	icons       map[string]*string
	failBatches map[int]bool
	batches     [][]string
}

func (f *fakeChannelClient) ChannelsByIDs(_ context.Context, ids []string) ([]youtube.ChannelDetail, error) {
	f.batches = append(f.batches, append([]string{}, ids...))
	if f.failBatches[len(f.batches)] {
		return nil, fmt.Errorf("simulated channel batch failure")
	}
	res := make([]youtube.ChannelDetail, 0, len(ids))
	for _, id := range ids {
		if icon, ok := f.icons[id]; ok {
			res = append(res, youtube.ChannelDetail{ChannelID: id, Icon: icon})
		}
	}
	return res, nil
}

func iconURL(s string) *string { return &s }

func TestIconResolver_Resolve(t *testing.T) {
	t.Run("fetches and caches", func(t *testing.T) {
		client := &fakeChannelClient{icons: map[string]*string{
			"chan-a": iconURL("https://img/a.jpg"),
			"chan-b": nil, // known channel without an icon
		}}
		resolver := NewIconResolver(client, time.Hour)

		icons, err := resolver.Resolve(context.Background(), []string{"chan-a", "chan-b"})
		require.NoError(t, err)
		require.Len(t, icons, 2)
		require.NotNil(t, icons["chan-a"])
		assert.Equal(t, "https://img/a.jpg", *icons["chan-a"])
		iconB, present := icons["chan-b"]
		assert.True(t, present)
		assert.Nil(t, iconB)

		// second resolve of the same set comes from cache
		icons, err = resolver.Resolve(context.Background(), []string{"chan-a", "chan-b"})
		require.NoError(t, err)
		assert.Len(t, icons, 2)
		assert.Len(t, client.batches, 1)
	})

	t.Run("partial coverage refetches full set", func(t *testing.T) {
		client := &fakeChannelClient{icons: map[string]*string{
			"chan-a": iconURL("https://img/a.jpg"),
			"chan-c": iconURL("https://img/c.jpg"),
		}}
		resolver := NewIconResolver(client, time.Hour)

		_, err := resolver.Resolve(context.Background(), []string{"chan-a"})
		require.NoError(t, err)
		require.Len(t, client.batches, 1)

		// chan-c is not cached, so the whole requested set is refetched
		icons, err := resolver.Resolve(context.Background(), []string{"chan-a", "chan-c"})
		require.NoError(t, err)
		require.Len(t, client.batches, 2)
		assert.Equal(t, []string{"chan-a", "chan-c"}, client.batches[1])
		assert.Len(t, icons, 2)
	})

	t.Run("whole cache expires after the window", func(t *testing.T) {
		client := &fakeChannelClient{icons: map[string]*string{"chan-a": iconURL("https://img/a.jpg")}}
		resolver := NewIconResolver(client, time.Hour)

		current := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		resolver.now = func() time.Time { return current }

		_, err := resolver.Resolve(context.Background(), []string{"chan-a"})
		require.NoError(t, err)
		require.Len(t, client.batches, 1)

		current = current.Add(time.Hour - time.Millisecond)
		_, err = resolver.Resolve(context.Background(), []string{"chan-a"})
		require.NoError(t, err)
		assert.Len(t, client.batches, 1) // still inside the window

		current = current.Add(2 * time.Millisecond)
		_, err = resolver.Resolve(context.Background(), []string{"chan-a"})
		require.NoError(t, err)
		assert.Len(t, client.batches, 2) // window passed, refetched
	})

	t.Run("batches of at most fifty", func(t *testing.T) {
		icons := map[string]*string{}
		ids := make([]string, 51)
		for i := range ids {
			ids[i] = fmt.Sprintf("chan-%02d", i)
			icons[ids[i]] = iconURL("https://img/x.jpg")
		}
		client := &fakeChannelClient{icons: icons}
		resolver := NewIconResolver(client, time.Hour)

		result, err := resolver.Resolve(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, result, 51)
		require.Len(t, client.batches, 2)
		assert.Len(t, client.batches[0], 50)
		assert.Len(t, client.batches[1], 1)
	})

	t.Run("failed batch leaves its ids absent", func(t *testing.T) {
		icons := map[string]*string{}
		ids := make([]string, 51)
		for i := range ids {
			ids[i] = fmt.Sprintf("chan-%02d", i)
			icons[ids[i]] = iconURL("https://img/x.jpg")
		}
		client := &fakeChannelClient{icons: icons, failBatches: map[int]bool{1: true}}
		resolver := NewIconResolver(client, time.Hour)

		result, err := resolver.Resolve(context.Background(), ids)
		require.NoError(t, err)
		assert.Len(t, result, 1) // only the second batch landed
		assert.Contains(t, result, "chan-50")
		assert.NotContains(t, result, "chan-00")
	})

	t.Run("empty request", func(t *testing.T) {
		client := &fakeChannelClient{}
		resolver := NewIconResolver(client, time.Hour)

		result, err := resolver.Resolve(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, result)
		assert.Empty(t, client.batches)
	})
}

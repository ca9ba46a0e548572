package youtube

// wire types for the catalog API. Only the fields the aggregation pipeline
// reads are declared; everything else in the payloads is ignored.

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnails struct {
	Default  *thumbnail `json:"default"`
	Medium   *thumbnail `json:"medium"`
	High     *thumbnail `json:"high"`
	Standard *thumbnail `json:"standard"`
	Maxres   *thumbnail `json:"maxres"`
}

// bestURL prefers the medium rendition, falling back to default.
func (t thumbnails) bestURL() string {
	if t.Medium != nil && t.Medium.URL != "" {
		return t.Medium.URL
	}
	if t.Default != nil {
		return t.Default.URL
	}
	return ""
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type playlistItemSnippet struct {
	Title        string     `json:"title"`
	PublishedAt  string     `json:"publishedAt"`
	ChannelID    string     `json:"channelId"`
	ChannelTitle string     `json:"channelTitle"`
	Thumbnails   thumbnails `json:"thumbnails"`
	ResourceID   struct {
		VideoID string `json:"videoId"`
	} `json:"resourceId"`
}

type playlistItem struct {
	ID      string              `json:"id"`
	Snippet playlistItemSnippet `json:"snippet"`
}

type playlistItemsResponse struct {
	Items         []playlistItem `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
	Error         *apiError      `json:"error"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string     `json:"title"`
		PublishedAt  string     `json:"publishedAt"`
		ChannelID    string     `json:"channelId"`
		ChannelTitle string     `json:"channelTitle"`
		Thumbnails   thumbnails `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
	} `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
	Error *apiError   `json:"error"`
}

type channelItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Thumbnails thumbnails `json:"thumbnails"`
	} `json:"snippet"`
}

type channelsResponse struct {
	Items []channelItem `json:"items"`
	Error *apiError     `json:"error"`
}

// VideoDetail is one record from a batched video lookup, still carrying the
// raw view count and duration strings; the enricher owns their parsing.
type VideoDetail struct {
	VideoID      string
	Title        string
	PublishedAt  string
	ChannelID    string
	ChannelTitle string
	Thumbnail    string
	ViewCount    string
	Duration     string
}

// ChannelDetail is one record from a batched channel lookup. Icon is nil when
// the channel has no default thumbnail.
type ChannelDetail struct {
	ChannelID string
	Icon      *string
}

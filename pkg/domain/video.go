package domain

import "time"

// PlaylistEntry represents one playlist membership record as returned by the
// upstream catalog. It carries only what the playlist listing knows about the
// video; full statistics come later from enrichment.
type PlaylistEntry struct {
	VideoID      string
	Title        string
	Published    time.Time
	Thumbnail    string
	ChannelID    string
	ChannelTitle string
}

// Video is the enriched record for one piece of content, keyed by VideoID.
// ChannelIcon is nil until (and unless) the icon resolver finds one; a channel
// with no icon stays nil after resolution.
type Video struct {
	VideoID      string    `json:"videoId"`
	ViewCount    int64     `json:"viewCount"`
	IsShort      bool      `json:"isShort"`
	Duration     string    `json:"duration"`
	Seconds      int       `json:"-"`
	Published    time.Time `json:"publishedAt"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle"`
	ChannelIcon  *string   `json:"channelIcon"`
	Title        string    `json:"title"`
	Thumbnail    string    `json:"thumbnail"`
}

package aggregator

import "github.com/clipfeed/clipfeed/pkg/domain"

// Dedupe collapses playlist entries to one per video id, first occurrence
// wins. Entries without a video id are dropped. Output keeps first-seen order,
// which makes duplicate resolution deterministic when two playlists list the
// same video.
func Dedupe(entries []domain.PlaylistEntry) []domain.PlaylistEntry {
	seen := make(map[string]struct{}, len(entries))
	unique := make([]domain.PlaylistEntry, 0, len(entries))
	for _, e := range entries {
		if e.VideoID == "" {
			continue
		}
		if _, ok := seen[e.VideoID]; ok {
			continue
		}
		seen[e.VideoID] = struct{}{}
		unique = append(unique, e)
	}
	return unique
}

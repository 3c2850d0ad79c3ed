package model

// AtRiskMarker is the suffix appended to a highlight URL when the owning
// channel meets the retention threshold. It is persisted as textual state in
// the report and the queue, and stripped again before the URL is handed to
// the downloader.
const AtRiskMarker = "*****"

// QueueSchemaVersion versions the persisted download queue. Bump when item
// fields change shape; the loader keeps accepting the version-less legacy
// array format produced by earlier releases.
const QueueSchemaVersion = 1

// Highlight is a verified submission that carries at least one Twitch video
// link. URLs may carry AtRiskMarker once the highlight has been saved.
type Highlight struct {
	Players      []string `json:"players"`
	Game         string   `json:"game"`
	Abbreviation string   `json:"abbreviation"`
	Category     string   `json:"category"`
	Time         string   `json:"time"`
	URLs         []string `json:"urls"`
	RunID        string   `json:"run_id"`
	Submitted    string   `json:"submitted"`
	Date         string   `json:"date"`
	Comment      string   `json:"comment"`
	VodSites     []string `json:"vod_sites,omitempty"`
	AtRisk       bool     `json:"at_risk"`
}

// SourceLink is the provenance deep link back to the submission the URL was
// harvested from.
func (h Highlight) SourceLink() string {
	return "https://speedrun.com/" + h.Abbreviation + "/runs/" + h.RunID
}

// DownloadItem is one queued (target, origin) pair. Origin is opaque
// provenance, only ever echoed into reports and logs.
type DownloadItem struct {
	URL    string `json:"url"`
	Origin string `json:"origin"`
}

// DownloadQueue is the persisted remaining-work list. The on-disk file is
// the sole source of truth for what is left to download.
type DownloadQueue struct {
	SchemaVersion int            `json:"schema_version"`
	Items         []DownloadItem `json:"items"`
}

// ChannelUsage aggregates archived-video durations for one channel.
// TotalDuration is always recomputed as the sum of the channel's known
// non-missing video durations, never incremented in place.
type ChannelUsage struct {
	TotalDuration int64    `json:"total_duration"`
	VideoIDs      []string `json:"video_ids"`
}

// VideoInfo is cached metadata for one video id. Missing marks ids the
// metadata API could not resolve; they are never re-queried within the same
// cache lifetime.
type VideoInfo struct {
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Channel         string `json:"channel,omitempty"`
	ChannelID       string `json:"channel_id,omitempty"`
	Missing         bool   `json:"missing,omitempty"`
}

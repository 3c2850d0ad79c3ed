package twitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/runstore"
)

// RiskThresholdSeconds is the platform's highlight retention threshold:
// channels at or past 100 hours of archived video face automatic deletion.
const RiskThresholdSeconds = 360000

var durationPattern = regexp.MustCompile(`^(?:([0-9]+)h)?(?:([0-9]+)m)?(?:([0-9]+)s?)?$`)

// ParseDuration converts the platform's "1h2m33s" duration strings to
// seconds. A bare trailing number counts as seconds.
func ParseDuration(raw string) (int64, error) {
	m := durationPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	var total int64
	if m[1] != "" {
		h, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total += h * 3600
	}
	if m[2] != "" {
		min, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total += min * 60
	}
	if m[3] != "" {
		s, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total += s
	}
	return total, nil
}

type usageState struct {
	SchemaVersion int                           `json:"schema_version"`
	Videos        map[string]model.VideoInfo    `json:"videos"`
	Channels      map[string]model.ChannelUsage `json:"channels"`
}

// UsageCache accumulates per-channel video durations across runs and flags
// channels at the retention threshold. State is flushed to disk after every
// metadata batch, so a crash mid-refresh loses at most one in-flight batch.
type UsageCache struct {
	path  string
	api   VideoAPI
	state usageState
}

// LoadUsageCache reads the persisted cache, treating a missing or corrupt
// file as an empty cache rather than a startup failure.
func LoadUsageCache(path string, api VideoAPI) *UsageCache {
	u := &UsageCache{
		path: path,
		api:  api,
		state: usageState{
			SchemaVersion: 1,
			Videos:        map[string]model.VideoInfo{},
			Channels:      map[string]model.ChannelUsage{},
		},
	}
	var loaded usageState
	if err := runstore.ReadJSON(path, &loaded); err == nil {
		if loaded.Videos != nil {
			u.state.Videos = loaded.Videos
		}
		if loaded.Channels != nil {
			u.state.Channels = loaded.Channels
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("usage cache %s unreadable, starting fresh: %v\n", path, err)
	}
	return u
}

func (u *UsageCache) Save() error {
	return runstore.WriteJSON(u.path, u.state)
}

// Refresh resolves every not-yet-known video id among urls, marks ids the
// API cannot resolve as missing (never to be re-queried), pulls the full
// archive for any newly seen channel, and recomputes all channel totals.
func (u *UsageCache) Refresh(ctx context.Context, urls []string) error {
	unknown := u.collectUnknownIDs(urls)

	if len(unknown) != 0 {
		fmt.Printf("fetching metadata for %d video ids\n", len(unknown))
		for start := 0; start < len(unknown); start += MaxBatchSize {
			end := start + MaxBatchSize
			if end > len(unknown) {
				end = len(unknown)
			}
			batch := unknown[start:end]
			metas, err := u.api.VideosByID(ctx, batch)
			if err != nil {
				return fmt.Errorf("resolve video batch at %d: %w", start, err)
			}
			resolved := make(map[string]bool, len(metas))
			for _, meta := range metas {
				seconds, err := ParseDuration(meta.Duration)
				if err != nil {
					return fmt.Errorf("video %s: %w", meta.ID, err)
				}
				u.state.Videos[meta.ID] = model.VideoInfo{
					DurationSeconds: seconds,
					Channel:         meta.ChannelLogin,
					ChannelID:       meta.ChannelID,
				}
				resolved[meta.ID] = true
			}
			for _, id := range batch {
				if !resolved[id] {
					u.state.Videos[id] = model.VideoInfo{Missing: true}
				}
			}
			if err := u.Save(); err != nil {
				return err
			}
		}
	}

	if err := u.fetchNewChannelArchives(ctx); err != nil {
		return err
	}

	u.recomputeTotals()
	return u.Save()
}

func (u *UsageCache) collectUnknownIDs(urls []string) []string {
	var unknown []string
	seen := make(map[string]bool)
	for _, url := range urls {
		kind, id := Classify(url)
		if kind != TwitchVideo {
			if IsClipCollection(url) {
				fmt.Printf("skipped c-type url %s\n", url)
			} else if kind == TwitchNonVideo {
				fmt.Printf("skipped non-video url %s\n", url)
			}
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, known := u.state.Videos[id]; !known {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// fetchNewChannelArchives pulls the complete video list for channels that
// appear in the video cache but have no usage entry yet. The channel total
// has to cover the whole archive, not only the harvested highlights.
func (u *UsageCache) fetchNewChannelArchives(ctx context.Context) error {
	for id, info := range u.state.Videos {
		if info.Missing {
			continue
		}
		if _, known := u.state.Channels[info.Channel]; known {
			continue
		}
		fmt.Printf("fetching video list for channel %s\n", info.Channel)
		metas, err := u.api.ChannelVideos(ctx, info.ChannelID)
		if err != nil {
			return fmt.Errorf("fetch channel archive for %s (video %s): %w", info.Channel, id, err)
		}
		usage := model.ChannelUsage{VideoIDs: make([]string, 0, len(metas))}
		for _, meta := range metas {
			seconds, err := ParseDuration(meta.Duration)
			if err != nil {
				return fmt.Errorf("video %s: %w", meta.ID, err)
			}
			if _, known := u.state.Videos[meta.ID]; !known {
				u.state.Videos[meta.ID] = model.VideoInfo{
					DurationSeconds: seconds,
					Channel:         meta.ChannelLogin,
					ChannelID:       meta.ChannelID,
				}
			}
			usage.VideoIDs = append(usage.VideoIDs, meta.ID)
		}
		u.state.Channels[info.Channel] = usage
		if err := u.Save(); err != nil {
			return err
		}
	}
	return nil
}

// recomputeTotals rebuilds every channel total from scratch as the sum of
// its known non-missing video durations. Totals are never incremented in
// place, so later corrections (a video flipped to missing) stay consistent.
func (u *UsageCache) recomputeTotals() {
	for login, usage := range u.state.Channels {
		var total int64
		for _, id := range usage.VideoIDs {
			info, ok := u.state.Videos[id]
			if !ok || info.Missing {
				continue
			}
			total += info.DurationSeconds
		}
		usage.TotalDuration = total
		u.state.Channels[login] = usage
	}
}

// IsAtRisk reports whether url is a Twitch video whose owning channel sits
// at or past the retention threshold. Unclassifiable URLs, unresolved and
// missing videos, and unknown channels are never at risk.
func (u *UsageCache) IsAtRisk(url string) bool {
	kind, id := Classify(url)
	if kind != TwitchVideo {
		return false
	}
	info, ok := u.state.Videos[id]
	if !ok || info.Missing {
		return false
	}
	usage, ok := u.state.Channels[info.Channel]
	if !ok {
		return false
	}
	return usage.TotalDuration >= RiskThresholdSeconds
}

// WriteChannelRoster writes channels sorted by total duration, busiest
// first, to a plain text file.
func (u *UsageCache) WriteChannelRoster(path string) error {
	type row struct {
		login string
		total int64
	}
	rows := make([]row, 0, len(u.state.Channels))
	for login, usage := range u.state.Channels {
		rows = append(rows, row{login: login, total: usage.TotalDuration})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		return rows[i].login < rows[j].login
	})

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: %d\n", r.login, r.total)
	}
	return runstore.WriteBytes(path, []byte(b.String()))
}

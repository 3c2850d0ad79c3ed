package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"speedrun-rescue/internal/download"
)

const (
	DefaultVideoFolder         = "output"
	DefaultCacheFilename       = "twitch_cache.json"
	DefaultVideoQuality        = "best"
	DefaultConcurrentFragments = 1
)

// Settings is the on-disk JSON configuration. Exactly one of Username and
// Game selects the harvest target.
type Settings struct {
	Username string `json:"username,omitempty"`
	Game     string `json:"game,omitempty"`

	TwitchClientID     string `json:"twitch_client_id,omitempty"`
	TwitchClientSecret string `json:"twitch_client_secret,omitempty"`

	VideoFolder   string `json:"video_folder,omitempty"`
	CacheFilename string `json:"cache_filename,omitempty"`

	DownloadVideos           bool   `json:"download_videos,omitempty"`
	AllowAll                 bool   `json:"allow_all,omitempty"`
	VideoQuality             string `json:"video_quality,omitempty"`
	ConcurrentFragments      int    `json:"concurrent_fragments,omitempty"`
	IgnoreLinksInDescription bool   `json:"ignore_links_in_description,omitempty"`
	SaveOnlyPBs              bool   `json:"save_only_pbs,omitempty"`
}

// UserMode reports whether the target is a user rather than a game
// leaderboard.
func (s Settings) UserMode() bool {
	return s.Username != ""
}

// Target is the user or game abbreviation being harvested.
func (s Settings) Target() string {
	if s.UserMode() {
		return s.Username
	}
	return s.Game
}

// HasTwitchCredentials reports whether metadata lookups are possible.
// Without credentials every highlight is treated as at risk.
func (s Settings) HasTwitchCredentials() bool {
	return s.TwitchClientID != "" && s.TwitchClientSecret != ""
}

// Quality parses the configured quality policy. Validate guarantees this
// cannot fail on a loaded Settings.
func (s Settings) Quality() (download.Quality, error) {
	return download.ParseQuality(s.VideoQuality)
}

func defaultSettings() Settings {
	return Settings{
		VideoFolder:         DefaultVideoFolder,
		CacheFilename:       DefaultCacheFilename,
		VideoQuality:        DefaultVideoQuality,
		ConcurrentFragments: DefaultConcurrentFragments,
	}
}

func normalizeSettings(raw Settings) Settings {
	norm := raw
	norm.Username = strings.TrimSpace(norm.Username)
	norm.Game = strings.TrimSpace(norm.Game)
	norm.TwitchClientID = strings.TrimSpace(norm.TwitchClientID)
	norm.TwitchClientSecret = strings.TrimSpace(norm.TwitchClientSecret)
	if strings.TrimSpace(norm.VideoFolder) == "" {
		norm.VideoFolder = DefaultVideoFolder
	}
	if strings.TrimSpace(norm.CacheFilename) == "" {
		norm.CacheFilename = DefaultCacheFilename
	}
	if strings.TrimSpace(norm.VideoQuality) == "" {
		norm.VideoQuality = DefaultVideoQuality
	}
	if norm.ConcurrentFragments <= 0 {
		norm.ConcurrentFragments = DefaultConcurrentFragments
	}
	return norm
}

// Validate rejects settings that cannot drive a harvest.
func Validate(s Settings) error {
	if s.Username == "" && s.Game == "" {
		return fmt.Errorf("set either username or game in the settings file")
	}
	if s.Username != "" && s.Game != "" {
		return fmt.Errorf("username and game are mutually exclusive, set only one")
	}
	if !s.UserMode() && !s.HasTwitchCredentials() {
		return fmt.Errorf("game mode needs twitch_client_id and twitch_client_secret to scan channel archives")
	}
	if _, err := download.ParseQuality(s.VideoQuality); err != nil {
		return err
	}
	return nil
}

// Load reads, normalizes, and validates the settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	s := defaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s = normalizeSettings(s)
	if err := Validate(s); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

package cli

import (
	"path/filepath"

	"speedrun-rescue/internal/config"
)

// targetPaths collects every file the tool maintains for one harvest
// target. Everything lives under <video_folder>/<mode>/<target>/ so two
// targets never share state.
type targetPaths struct {
	Dir        string
	APICache   string
	UsageCache string
	Queue      string
	Report     string
	Highlights string
	Roster     string
	Provenance string
	Videos     string
}

func resolveTargetPaths(s config.Settings) targetPaths {
	mode := "game"
	if s.UserMode() {
		mode = "user"
	}
	dir := filepath.Join(s.VideoFolder, mode, s.Target())
	return targetPaths{
		Dir:        dir,
		APICache:   filepath.Join(dir, "api_cache"),
		UsageCache: filepath.Join(dir, s.CacheFilename),
		Queue:      filepath.Join(dir, "queue.json"),
		Report:     filepath.Join(dir, "highlights.txt"),
		Highlights: filepath.Join(dir, "highlights.json"),
		Roster:     filepath.Join(dir, "twitch_users_at_risk.txt"),
		Provenance: filepath.Join(dir, "download_info.txt"),
		Videos:     filepath.Join(dir, "videos"),
	}
}

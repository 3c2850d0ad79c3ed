package download

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"speedrun-rescue/internal/ytdlp"
)

// Quality is the resolution policy for format selection. Best trumps the
// height fields; otherwise Height is the target and PreferHigher picks the
// fallback direction when no format matches it exactly.
type Quality struct {
	Best         bool
	Height       int
	PreferHigher bool
}

func (q Quality) String() string {
	if q.Best {
		return "best"
	}
	if q.PreferHigher {
		return fmt.Sprintf(">=%dp", q.Height)
	}
	return fmt.Sprintf("<=%dp", q.Height)
}

// ParseQuality reads a quality setting: "best", a bare height such as
// "720" or "720p", or a height with an explicit fallback direction such
// as ">=480" or "<=1080p". A bare height prefers higher on fallback.
func ParseQuality(raw string) (Quality, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" || s == "best" {
		return Quality{Best: true}, nil
	}
	preferHigher := true
	switch {
	case strings.HasPrefix(s, ">="):
		s = s[2:]
	case strings.HasPrefix(s, "<="):
		preferHigher = false
		s = s[2:]
	}
	s = strings.TrimSuffix(s, "p")
	height, err := strconv.Atoi(s)
	if err != nil || height <= 0 {
		return Quality{}, fmt.Errorf("invalid video quality %q", raw)
	}
	return Quality{Height: height, PreferHigher: preferHigher}, nil
}

// SelectFormat picks a yt-dlp format spec for the given quality policy.
//
// Selection runs on formats that carry video and a known height. The exact
// target height wins when present; otherwise the fallback direction decides
// between the nearest higher and nearest lower height. Among formats at the
// chosen height, a source-labeled one wins, then the highest bitrate.
//
// Source promotion: when the pick is not source-labeled but a source format
// reports a LOWER bitrate, the source format is taken instead. The platform
// is known to under-report source bitrates, and source is the original
// upload, never a transcode.
func SelectFormat(q Quality, formats []ytdlp.Format) string {
	usable := make([]ytdlp.Format, 0, len(formats))
	for _, f := range formats {
		if f.VCodec == "none" || f.Height <= 0 {
			continue
		}
		usable = append(usable, f)
	}
	if len(usable) == 0 {
		return "bestvideo+bestaudio/best"
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Height < usable[j].Height
	})

	chosen := pickByHeight(q, usable)
	chosen = promoteSource(chosen, usable)

	if chosen.VideoOnly() {
		return chosen.ID + "+bestaudio"
	}
	return chosen.ID
}

// pickByHeight resolves the quality policy to one format. usable must be
// non-empty and sorted by ascending height.
func pickByHeight(q Quality, usable []ytdlp.Format) ytdlp.Format {
	if q.Best {
		return bestAtHeight(usable, usable[len(usable)-1].Height)
	}

	var lower, higher []ytdlp.Format
	for _, f := range usable {
		switch {
		case f.Height == q.Height:
			return bestAtHeight(usable, q.Height)
		case f.Height < q.Height:
			lower = append(lower, f)
		default:
			higher = append(higher, f)
		}
	}
	if q.PreferHigher {
		if len(higher) != 0 {
			return bestAtHeight(higher, higher[0].Height)
		}
		return bestAtHeight(lower, lower[len(lower)-1].Height)
	}
	if len(lower) != 0 {
		return bestAtHeight(lower, lower[len(lower)-1].Height)
	}
	return bestAtHeight(higher, higher[0].Height)
}

// bestAtHeight picks among formats at exactly height: source label first,
// then highest bitrate.
func bestAtHeight(formats []ytdlp.Format, height int) ytdlp.Format {
	var chosen ytdlp.Format
	have := false
	for _, f := range formats {
		if f.Height != height {
			continue
		}
		if !have {
			chosen, have = f, true
			continue
		}
		if f.IsSource() && !chosen.IsSource() {
			chosen = f
			continue
		}
		if f.IsSource() == chosen.IsSource() && f.TBR > chosen.TBR {
			chosen = f
		}
	}
	return chosen
}

func promoteSource(chosen ytdlp.Format, usable []ytdlp.Format) ytdlp.Format {
	if chosen.IsSource() {
		return chosen
	}
	for _, f := range usable {
		if f.IsSource() && f.TBR < chosen.TBR {
			return f
		}
	}
	return chosen
}

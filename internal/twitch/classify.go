package twitch

import "regexp"

// Classification of a harvested URL against Twitch's addressing shapes.
type Classification int

const (
	// NotTwitch is anything outside the twitch.tv domain pattern.
	NotTwitch Classification = iota
	// TwitchNonVideo is a twitch.tv URL with no downloadable VOD behind
	// it: bare channels, legacy /<channel>/c/<id> clip collections, and
	// anything else that is not a video path. Reported, never downloaded.
	TwitchNonVideo
	// TwitchVideo is a VOD URL with an extractable video id.
	TwitchVideo
)

var (
	baseURLPattern     = regexp.MustCompile(`(?i)(https?://)?(?:\w+\.)?twitch\.tv/\S*`)
	channelItemPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:m\.)?(?:secure\.)?twitch\.tv/(\w+)/([cv])/(\d+)`)
	directVideoPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:m\.)?(?:secure\.)?twitch\.tv/videos/(\d+)`)
)

// Classify reports whether url addresses a Twitch video and, when it does,
// the stable video id. Matching is case-insensitive and tolerates missing
// schemes and the www/m/secure subdomain variants.
func Classify(url string) (Classification, string) {
	if !baseURLPattern.MatchString(url) {
		return NotTwitch, ""
	}
	if m := directVideoPattern.FindStringSubmatch(url); m != nil {
		return TwitchVideo, m[1]
	}
	if m := channelItemPattern.FindStringSubmatch(url); m != nil {
		if m[2] == "c" || m[2] == "C" {
			return TwitchNonVideo, ""
		}
		return TwitchVideo, m[3]
	}
	return TwitchNonVideo, ""
}

// IsClipCollection reports the legacy /<channel>/c/<id> shape, which gets
// its own log line so dropped links stay visible.
func IsClipCollection(url string) bool {
	m := channelItemPattern.FindStringSubmatch(url)
	return m != nil && (m[2] == "c" || m[2] == "C") && !directVideoPattern.MatchString(url)
}

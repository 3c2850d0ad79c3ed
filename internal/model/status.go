package model

import "fmt"

const (
	StatusPending                 = "pending"
	StatusDownloaded              = "downloaded"
	StatusSkippedNotAtRisk        = "skipped_not_at_risk"
	StatusSkippedConfirmedMissing = "skipped_confirmed_missing"
	StatusPausedForResume         = "paused_for_resume"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending:                 true,
		StatusDownloaded:              true,
		StatusSkippedNotAtRisk:        true,
		StatusSkippedConfirmedMissing: true,
		StatusPausedForResume:         true,
	},
	StatusPausedForResume: {
		StatusPausedForResume: true,
		StatusPending:         true, // resumed run re-attempts the item
	},
	// Terminal outcomes. Once recorded the item has already left the queue.
	StatusDownloaded:              {StatusDownloaded: true},
	StatusSkippedNotAtRisk:        {StatusSkippedNotAtRisk: true},
	StatusSkippedConfirmedMissing: {StatusSkippedConfirmedMissing: true},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusDownloaded, StatusSkippedNotAtRisk, StatusSkippedConfirmedMissing:
		return true
	default:
		return false
	}
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func Transition(from, to string, url string) (string, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid download item transition: %q -> %q (url=%s)", from, to, url)
	}
	return to, nil
}

package vision

import (
	"fmt"
	"strings"
)

// RunningMode is the execution discipline a TaskRunner is bound to.
type RunningMode int

const (
	// RunningModeImage processes independent images synchronously.
	RunningModeImage RunningMode = iota
	// RunningModeVideo processes timestamped frames synchronously.
	RunningModeVideo
	// RunningModeLiveStream processes timestamped frames asynchronously.
	RunningModeLiveStream
)

func (m RunningMode) String() string {
	switch m {
	case RunningModeImage:
		return "image"
	case RunningModeVideo:
		return "video"
	case RunningModeLiveStream:
		return "live_stream"
	default:
		return fmt.Sprintf("RunningMode(%d)", int(m))
	}
}

// ParseRunningMode accepts "image", "video" and "live_stream", ignoring case.
// "live-stream" and "livestream" are accepted as well.
func ParseRunningMode(s string) (RunningMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return RunningModeImage, nil
	case "video":
		return RunningModeVideo, nil
	case "live_stream", "live-stream", "livestream":
		return RunningModeLiveStream, nil
	default:
		return 0, &Error{Kind: ErrConfiguration, Op: "vision", Msg: fmt.Sprintf("unknown running mode %q", s)}
	}
}

func (m RunningMode) valid() bool {
	return m >= RunningModeImage && m <= RunningModeLiveStream
}

// phrase is the wording used in mode mismatch errors.
func (m RunningMode) phrase() string {
	if m == RunningModeLiveStream {
		return "live stream"
	}
	return m.String()
}

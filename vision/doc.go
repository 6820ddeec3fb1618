// Package vision implements the running-mode state machine shared by vision
// tasks.
//
// A TaskRunner is bound to exactly one RunningMode when it is created:
//
//   - RunningModeImage: ProcessImage runs inference synchronously on
//     independent images.
//   - RunningModeVideo: ProcessVideo runs inference synchronously on frames
//     whose timestamps must increase strictly.
//   - RunningModeLiveStream: ProcessLiveStream validates the timestamp on the
//     caller's goroutine, returns immediately, and delivers the result later
//     through the ResultCallback. Results are delivered in submission order.
//
// Calls that do not match the runner's mode fail with ErrMode. Out-of-order
// timestamps fail with ErrTimestamp and leave the runner untouched. After
// Close every call fails with ErrLifecycle.
//
// The model itself is an Engine created by an EngineFactory from the resolved
// BaseOptions. The runner owns the engine and releases it exactly once.
package vision

// Package transcode wraps the ffmpeg invocations that turn an uploaded audio
// file into a still-image video. Each call returns an Outcome carrying the
// exit status and captured stderr instead of an error, so callers decide how
// a failure is reported.
package transcode

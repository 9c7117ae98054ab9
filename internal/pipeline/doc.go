// Package pipeline turns one (audio, title) pair into an uploaded video.
//
// A run decodes the audio to wav, encodes mp3, composes the configured still
// image with the mp3 into an mp4, and uploads it. Any failure ends the run.
// All artifacts are removed when Run returns, whatever the outcome.
package pipeline

package api

import (
	"maps"
	"time"

	"audiotube/internal/deps"
	"audiotube/internal/history"
	"audiotube/internal/jobs"
	"audiotube/internal/session"
)

// FromRecord converts a history record to its API representation.
func FromRecord(rec history.Record) UploadItem {
	dto := UploadItem{
		RunID:      rec.RunID,
		ChatID:     rec.ChatID,
		Title:      rec.Title,
		InputKind:  rec.InputKind,
		SourceName: rec.SourceName,
		Status:     string(rec.Status),
		URL:        rec.URL,
		Error:      rec.Error,
		StartedAt:  formatTime(rec.StartedAt),
		FinishedAt: formatTime(rec.FinishedAt),
	}
	if d := rec.Duration(); d > 0 {
		dto.Seconds = d.Seconds()
	}
	return dto
}

// FromRecords converts a slice of records, never returning nil.
func FromRecords(records []history.Record) []UploadItem {
	out := make([]UploadItem, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromWorkerStats converts scheduler occupancy.
func FromWorkerStats(stats jobs.Stats) WorkerStatus {
	return WorkerStatus{Capacity: stats.Capacity, Active: stats.Active, Queued: stats.Queued}
}

// SessionCounts returns a count for every state, including empty ones, so
// consumers see a stable key set.
func SessionCounts(counts map[session.State]int) map[string]int {
	out := make(map[string]int, len(session.States))
	for _, state := range session.States {
		out[string(state)] = counts[state]
	}
	return out
}

// UploadStats converts per-status history counts.
func UploadStats(counts map[history.Status]int) map[string]int {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out
}

// CopyDownloaders returns a copy so the payload never aliases live state.
func CopyDownloaders(backends map[string]bool) map[string]bool {
	return maps.Clone(backends)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

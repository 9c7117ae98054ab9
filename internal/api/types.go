package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// WorkerStatus reports pipeline pool occupancy.
type WorkerStatus struct {
	Capacity int `json:"capacity"`
	Active   int `json:"active"`
	Queued   int `json:"queued"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	Bot           string             `json:"bot,omitempty"`
	StartedAt     string             `json:"startedAt,omitempty"`
	LockFilePath  string             `json:"lockFilePath"`
	HistoryDBPath string             `json:"historyDbPath,omitempty"`
	Sessions      map[string]int     `json:"sessions"`
	ActiveChats   int                `json:"activeChats"`
	Workers       WorkerStatus       `json:"workers"`
	Downloaders   map[string]bool    `json:"downloaders"`
	UploadsOn     bool               `json:"uploadsEnabled"`
	UploadStats   map[string]int     `json:"uploadStats,omitempty"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// UploadItem describes one pipeline run in a transport-friendly format.
type UploadItem struct {
	RunID      string  `json:"runId"`
	ChatID     int64   `json:"chatId"`
	Title      string  `json:"title"`
	InputKind  string  `json:"inputKind"`
	SourceName string  `json:"sourceName,omitempty"`
	Status     string  `json:"status"`
	URL        string  `json:"url,omitempty"`
	Error      string  `json:"error,omitempty"`
	StartedAt  string  `json:"startedAt,omitempty"`
	FinishedAt string  `json:"finishedAt,omitempty"`
	Seconds    float64 `json:"durationSeconds,omitempty"`
}

// UploadListResponse wraps a collection of runs for API responses.
type UploadListResponse struct {
	Items []UploadItem `json:"items"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

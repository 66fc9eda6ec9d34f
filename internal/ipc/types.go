package ipc

import (
	"linkrelay/internal/checkpoint"
	"linkrelay/internal/history"
	"linkrelay/internal/workflow"
)

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

// StatusResponse represents combined daemon and pipeline status.
type StatusResponse struct {
	Running      bool                    `json:"running"`
	PID          int                     `json:"pid"`
	LockPath     string                  `json:"lock_path"`
	LogPath      string                  `json:"log_path"`
	Workflow     *workflow.StatusSummary `json:"workflow,omitempty"`
	History      history.Stats           `json:"history"`
	Dependencies []DependencyStatus      `json:"dependencies"`
}

// EnqueueRequest appends links to the queue.
type EnqueueRequest struct {
	Links []string `json:"links"`
}

// EnqueueResponse reports how many links were accepted.
type EnqueueResponse struct {
	Added int `json:"added"`
}

// PauseRequest pauses processing after the in-flight item.
type PauseRequest struct{}

// PauseResponse reports the state after the directive.
type PauseResponse struct {
	State string `json:"state"`
}

// ResumeRequest resumes processing.
type ResumeRequest struct{}

// ResumeResponse reports the state after the directive.
type ResumeResponse struct {
	State string `json:"state"`
}

// SkipRequest discards the next Count dequeued links.
type SkipRequest struct {
	Count int `json:"count"`
}

// SkipResponse reports the pending skip counter.
type SkipResponse struct {
	PendingSkips int `json:"pending_skips"`
}

// CaptionRequest stages a caption for the next Count delivered items.
type CaptionRequest struct {
	Count int    `json:"count"`
	Text  string `json:"text"`
}

// CaptionResponse is empty on success.
type CaptionResponse struct{}

// ClearRequest removes every queued link.
type ClearRequest struct{}

// ClearResponse reports number of removed entries.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// RemainingRequest fetches a checkpoint of the queued links.
type RemainingRequest struct{}

// RemainingResponse carries the checkpoint.
type RemainingResponse struct {
	Checkpoint checkpoint.Checkpoint `json:"checkpoint"`
}

// HistoryRequest lists recent outcomes.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists outcomes newest first.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

package etl

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusRunning        RunStatus = "running"
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialSuccess RunStatus = "partial_success"
	RunStatusFailed         RunStatus = "failed"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusPartialSuccess || s == RunStatusFailed
}

type StartRunRequest struct {
	ConnectorID   string `json:"connectorId"`
	AccountID     string `json:"accountId"`
	RefreshWindow string `json:"refreshWindow,omitempty"`
	ManualSyncID  string `json:"manualSyncId"`
}

// RunError is one error reported by a run. The service reports either bare
// strings or objects carrying an "error" field.
type RunError struct {
	Message string
}

func (e *RunError) UnmarshalJSON(data []byte) error {
	var message string
	if err := json.Unmarshal(data, &message); err == nil {
		e.Message = message
		return nil
	}

	var object struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &object); err == nil && object.Error != "" {
		e.Message = object.Error
		return nil
	}

	e.Message = string(data)
	return nil
}

type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Details     string     `json:"details,omitempty"`
	RowCount    *int       `json:"rowCount,omitempty"`
	Errors      []RunError `json:"errors,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// SyncResult is the outcome of a run that reached success or partial_success.
type SyncResult struct {
	RunID        string    `json:"runId"`
	ConnectorID  string    `json:"connectorId"`
	AccountID    string    `json:"accountId"`
	ManualSyncID string    `json:"manualSyncId"`
	Status       RunStatus `json:"status"`
	SyncedAt     time.Time `json:"syncedAt"`
	RowCount     int       `json:"rowCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

package audit

import (
	"encoding/json"

	"jobaudit-engine/internal/domain"
)

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
)

// MessageSuccess is the note attached to an audit that finished without error.
const MessageSuccess = "SUCCESS"

// Record is the pollable state of one audit. Data is only set on a completed
// audit without Error.
type Record struct {
	Status  Status                `json:"status"`
	Error   string                `json:"error,omitempty"`
	Message string                `json:"message,omitempty"`
	Data    []domain.SearchResult `json:"data,omitempty"`
}

func Running() Record {
	return Record{Status: StatusRunning}
}

func Succeeded(results []domain.SearchResult) Record {
	if results == nil {
		results = []domain.SearchResult{}
	}
	return Record{Status: StatusCompleted, Message: MessageSuccess, Data: results}
}

func Failed(err error) Record {
	return Record{Status: StatusCompleted, Error: err.Error()}
}

func (r Record) Completed() bool { return r.Status == StatusCompleted }

// Succeeded reports a completed, error-free record.
func (r Record) Succeeded() bool { return r.Completed() && r.Error == "" }

// MarshalJSON keeps an empty result list visible as "data": [] on success,
// which omitempty would otherwise drop.
func (r Record) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status  Status `json:"status"`
		Error   string `json:"error,omitempty"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}
	w := wire{Status: r.Status, Error: r.Error, Message: r.Message}
	if r.Succeeded() {
		data := r.Data
		if data == nil {
			data = []domain.SearchResult{}
		}
		w.Data = data
	}
	return json.Marshal(w)
}

package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Audit actions.
const (
	ActionCreate = "create"
	ActionDelete = "delete"
)

// AuditEntry records one registration attempt against the task service.
type AuditEntry struct {
	At     time.Time `json:"at"`
	CallID string    `json:"call_id"`
	Task   string    `json:"task"`
	Folder string    `json:"folder,omitempty"`
	Action string    `json:"action"`
	OK     bool      `json:"ok"`
	// Code is the HRESULT of a failed call, 0 otherwise.
	Code   uint32 `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	TookMS int64  `json:"took_ms"`
}

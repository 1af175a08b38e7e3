// Package models defines core data structures for documents, chat turns, and backend payloads.
package models

import "time"

// DocumentStatus is the lifecycle state of an uploaded document.
type DocumentStatus string

const (
	StatusUploading DocumentStatus = "uploading"
	StatusIndexing  DocumentStatus = "indexing"
	StatusIndexed   DocumentStatus = "indexed"
	StatusError     DocumentStatus = "error"
)

// Terminal reports whether no transition leaves s.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusError
}

// Active reports whether s is a phase with a running progress ramp.
func (s DocumentStatus) Active() bool {
	return s == StatusUploading || s == StatusIndexing
}

// Label returns the human-readable status name.
func (s DocumentStatus) Label() string {
	switch s {
	case StatusUploading:
		return "Uploading"
	case StatusIndexing:
		return "Indexing"
	case StatusIndexed:
		return "Indexed"
	case StatusError:
		return "Error"
	default:
		return string(s)
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusUploading:
		return next == StatusIndexing || next == StatusError
	case StatusIndexing:
		return next == StatusIndexed || next == StatusError
	default:
		return false
	}
}

// Document tracks one uploaded PDF through upload and indexing.
type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Size      int64          `json:"size"`
	Status    DocumentStatus `json:"status"`
	Pages     int            `json:"pages,omitempty"`
	Progress  int            `json:"progress"`
	Error     string         `json:"error,omitempty"`
	RemoteID  string         `json:"remote_id,omitempty"`
	StartPage int            `json:"start_page,omitempty"`
	EndPage   int            `json:"end_page,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PageRange restricts indexing to pages Start..End (1-based, inclusive).
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Upload is a local file picked for upload.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	PageRange   *PageRange
	// LocalPages is the page count read from Data, 0 when unknown.
	LocalPages int
}

// Size returns the upload size in bytes.
func (u *Upload) Size() int64 {
	return int64(len(u.Data))
}

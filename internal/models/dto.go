package models

import "time"

// UploadRequest is the body of POST /api/upload
type UploadRequest struct {
	Image string `json:"image"`
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	Duplicate bool   `json:"duplicate"`
}

// PublishResponse is returned after the manifest has been rewritten
type PublishResponse struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	Invalidated bool   `json:"invalidated"`
}

// SelectYearRequest is the body of POST /api/gallery/year
type SelectYearRequest struct {
	Year int `json:"year"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database,omitempty"`
	Storage   string    `json:"storage,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadInfo is a ledger entry with its public URL
type UploadInfo struct {
	Upload
	URL string `json:"url"`
}

// UploadListResponse is a page of the upload ledger
type UploadListResponse struct {
	Uploads []UploadInfo `json:"uploads"`
	Total   int          `json:"total"`
}

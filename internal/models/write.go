package models

// WriteFileRequest represents a full-content overwrite of a single file.
type WriteFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileResponse reports the outcome of an overwrite: "created",
// "unchanged", or a unified diff of the prior vs new content.
type WriteFileResponse struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Diff    string `json:"diff,omitempty"`
	Created bool   `json:"created"`
}

package models

// ReadFilesRequest represents a request to read a batch of files.
type ReadFilesRequest struct {
	Paths []string `json:"paths"`
}

// FileReadResult is the per-path outcome of a batch read. Exactly one of
// Content and Error is meaningful; a failed path never aborts the batch.
type FileReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadFilesResponse carries one result per requested path, in request order.
type ReadFilesResponse struct {
	Results []FileReadResult `json:"results"`
}

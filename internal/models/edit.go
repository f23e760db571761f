package models

// EditFileRequest represents an exact-text replacement in a single file.
// OldText must already exist in the file; the first occurrence is replaced.
type EditFileRequest struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
}

// EditFileResponse carries the whole-file unified diff of the applied edit.
type EditFileResponse struct {
	Path string `json:"path"`
	Diff string `json:"diff"`
}

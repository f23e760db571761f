package models

// AnalyzeDirectoryRequest represents a request to recursively analyze a
// directory inside the sandbox.
type AnalyzeDirectoryRequest struct {
	// Path is the directory to analyze. Relative paths are resolved against
	// the process working directory.
	Path string `json:"path"`
}

// FileRecord describes one text file found during a directory analysis.
type FileRecord struct {
	// Path is relative to the analyzed root, forward-slash separated.
	Path string `json:"path"`
	// LineCount is the number of newline-split segments in the file. A file
	// ending in a newline counts the trailing empty segment as a line.
	LineCount int `json:"line_count"`
	// TokenCount is the tokenizer's count for the file content.
	TokenCount int `json:"token_count"`
}

// AnalyzeDirectoryResponse aggregates the records of a directory walk.
type AnalyzeDirectoryResponse struct {
	RootPath    string       `json:"root_path"`
	Files       []FileRecord `json:"files"`
	TotalFiles  int          `json:"total_files"`
	TotalTokens int          `json:"total_tokens"`
}

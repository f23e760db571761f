// Package service implements the sandboxed filesystem engine behind the
// four protocol operations: analyze_directory, read_files, write_file, and
// edit_file. Every operation validates its path against the sandbox before
// touching the filesystem.
package service

import (
	stdErrors "errors"
	"fmt"
	"os"
	"time"

	"codebase-context-server/internal/config"
	"codebase-context-server/internal/errors"
	"codebase-context-server/internal/filesystem"
	"codebase-context-server/internal/lock"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/patch"
	"codebase-context-server/internal/sandbox"
	"codebase-context-server/internal/tokenizer"
	"codebase-context-server/internal/walker"
)

// binaryFileError is the fixed per-item error reported for binary files in
// a batch read.
const binaryFileError = "Binary file"

// Engine defines the interface for the sandboxed filesystem operations.
type Engine interface {
	AnalyzeDirectory(req models.AnalyzeDirectoryRequest) (*models.AnalyzeDirectoryResponse, *models.ErrorDetail)
	ReadFiles(req models.ReadFilesRequest) (*models.ReadFilesResponse, *models.ErrorDetail)
	WriteFile(req models.WriteFileRequest) (*models.WriteFileResponse, *models.ErrorDetail)
	EditFile(req models.EditFileRequest) (*models.EditFileResponse, *models.ErrorDetail)
}

// DefaultEngine implements Engine.
type DefaultEngine struct {
	fs          filesystem.Adapter
	validator   *sandbox.Validator
	locks       lock.Manager
	tokens      *tokenizer.Service
	patcher     *patch.Engine
	model       tokenizer.ModelID
	maxFileSize int64
	opTimeout   time.Duration
}

// NewDefaultEngine wires the engine from its collaborators and the config.
func NewDefaultEngine(
	fs filesystem.Adapter,
	validator *sandbox.Validator,
	locks lock.Manager,
	tokens *tokenizer.Service,
	cfg *config.Config,
) (*DefaultEngine, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem adapter is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("sandbox validator is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock manager is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("tokenizer service is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	return &DefaultEngine{
		fs:          fs,
		validator:   validator,
		locks:       locks,
		tokens:      tokens,
		patcher:     patch.NewEngine(fs),
		model:       tokenizer.ModelID(cfg.TokenizerModel),
		maxFileSize: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		opTimeout:   time.Duration(cfg.OperationTimeoutSec) * time.Second,
	}, nil
}

var _ Engine = (*DefaultEngine)(nil)

// AnalyzeDirectory walks the validated directory and aggregates per-file
// line and token counts. Per-file failures are skipped inside the walk;
// only a failure on the root itself fails the operation.
func (s *DefaultEngine) AnalyzeDirectory(req models.AnalyzeDirectoryRequest) (*models.AnalyzeDirectoryResponse, *models.ErrorDetail) {
	root, errDetail := s.validatePath(req.Path, "analyze_directory")
	if errDetail != nil {
		return nil, errDetail
	}
	stats, err := s.fs.GetFileStats(root)
	if err != nil {
		return nil, mapFSError(req.Path, "analyze_directory", err)
	}
	if !stats.IsDir {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("Path '%s' is not a directory", req.Path),
			map[string]interface{}{"path": req.Path})
	}

	// Reject unknown identifiers and surface load failures before the walk,
	// instead of logging one failure per file.
	if _, err := s.tokens.Count("", s.model); err != nil {
		return nil, mapTokenizerError(s.model, err)
	}

	records, err := walker.New(s.fs, s.tokens.CounterFor(s.model)).Walk(root)
	if err != nil {
		return nil, errors.NewFileSystemError(req.Path, "analyze_directory", err.Error())
	}

	totalTokens := 0
	for _, record := range records {
		totalTokens += record.TokenCount
	}
	return &models.AnalyzeDirectoryResponse{
		RootPath:    root,
		Files:       records,
		TotalFiles:  len(records),
		TotalTokens: totalTokens,
	}, nil
}

// ReadFiles reads each requested path independently. A failed path is
// recorded as a per-item error and never stops the remaining paths; result
// order matches request order.
func (s *DefaultEngine) ReadFiles(req models.ReadFilesRequest) (*models.ReadFilesResponse, *models.ErrorDetail) {
	if len(req.Paths) == 0 {
		return nil, errors.NewInvalidParamsError("At least one path is required", nil)
	}
	results := make([]models.FileReadResult, 0, len(req.Paths))
	for _, p := range req.Paths {
		results = append(results, s.readOne(p))
	}
	return &models.ReadFilesResponse{Results: results}, nil
}

func (s *DefaultEngine) readOne(requested string) models.FileReadResult {
	result := models.FileReadResult{Path: requested}

	resolved, err := s.validator.Validate(requested)
	if err != nil {
		result.Error = errors.NewAccessDeniedError(requested, "read_files").Message
		return result
	}
	if walker.IsBinaryPath(resolved) {
		result.Error = binaryFileError
		return result
	}
	stats, err := s.fs.GetFileStats(resolved)
	if err != nil {
		result.Error = mapFSError(requested, "read_files", err).Message
		return result
	}
	if stats.IsDir {
		result.Error = fmt.Sprintf("Path '%s' is a directory, not a file", requested)
		return result
	}
	if stats.Size > s.maxFileSize {
		result.Error = errors.NewFileTooLargeError(requested, stats.Size, int(s.maxFileSize/(1024*1024))).Message
		return result
	}
	content, err := s.fs.ReadFileBytes(resolved)
	if err != nil {
		result.Error = mapFSError(requested, "read_files", err).Message
		return result
	}
	if !s.fs.IsValidUTF8(content) {
		result.Error = binaryFileError
		return result
	}
	result.Content = string(content)
	return result
}

// WriteFile overwrites (or creates) the validated file with the given
// content and reports "created", "unchanged", or a unified diff.
func (s *DefaultEngine) WriteFile(req models.WriteFileRequest) (*models.WriteFileResponse, *models.ErrorDetail) {
	resolved, errDetail := s.validatePath(req.Path, "write_file")
	if errDetail != nil {
		return nil, errDetail
	}
	if int64(len(req.Content)) > s.maxFileSize {
		return nil, errors.NewFileTooLargeError(req.Path, int64(len(req.Content)), int(s.maxFileSize/(1024*1024)))
	}

	held, err := s.locks.AcquireLock(resolved, s.opTimeout)
	if err != nil {
		return nil, errors.NewOperationLockFailedError(req.Path, "write_file", err.Error())
	}
	defer func() { _ = s.locks.ReleaseLock(held) }()

	result, err := s.patcher.Overwrite(resolved, req.Content)
	if err != nil {
		return nil, mapFSError(req.Path, "write_file", err)
	}
	return &models.WriteFileResponse{
		Path:    req.Path,
		Status:  string(result.Status),
		Diff:    result.Diff,
		Created: result.Status == patch.StatusCreated,
	}, nil
}

// EditFile replaces the first occurrence of old_text with new_text in the
// validated file and returns the whole-file unified diff.
func (s *DefaultEngine) EditFile(req models.EditFileRequest) (*models.EditFileResponse, *models.ErrorDetail) {
	resolved, errDetail := s.validatePath(req.Path, "edit_file")
	if errDetail != nil {
		return nil, errDetail
	}
	if req.OldText == "" {
		return nil, errors.NewInvalidParamsError("old_text must not be empty", map[string]interface{}{"path": req.Path})
	}

	held, err := s.locks.AcquireLock(resolved, s.opTimeout)
	if err != nil {
		return nil, errors.NewOperationLockFailedError(req.Path, "edit_file", err.Error())
	}
	defer func() { _ = s.locks.ReleaseLock(held) }()

	diff, err := s.patcher.Replace(resolved, req.OldText, req.NewText)
	if err != nil {
		switch {
		case stdErrors.Is(err, patch.ErrFileNotFound):
			return nil, errors.NewFileNotFoundError(req.Path, "edit_file")
		case stdErrors.Is(err, patch.ErrTextNotFound):
			return nil, errors.NewTextNotFoundError(req.Path)
		default:
			return nil, mapFSError(req.Path, "edit_file", err)
		}
	}
	return &models.EditFileResponse{Path: req.Path, Diff: diff}, nil
}

// validatePath routes a requested path through the sandbox validator and
// maps a denial to the terminal AccessDenied error.
func (s *DefaultEngine) validatePath(requested, operation string) (string, *models.ErrorDetail) {
	if requested == "" {
		return "", errors.NewInvalidParamsError("path is required", map[string]interface{}{"operation": operation})
	}
	resolved, err := s.validator.Validate(requested)
	if err != nil {
		return "", errors.NewAccessDeniedError(requested, operation)
	}
	return resolved, nil
}

// mapFSError classifies an adapter error into the matching ErrorDetail.
func mapFSError(path, operation string, err error) *models.ErrorDetail {
	underlying := err
	for unwrapped := stdErrors.Unwrap(underlying); unwrapped != nil; unwrapped = stdErrors.Unwrap(underlying) {
		underlying = unwrapped
	}
	switch {
	case os.IsNotExist(underlying):
		return errors.NewFileNotFoundError(path, operation)
	case os.IsPermission(underlying):
		return errors.NewPermissionDeniedError(path, operation)
	default:
		return errors.NewFileSystemError(path, operation, err.Error())
	}
}

// mapTokenizerError distinguishes load failures from encode failures.
func mapTokenizerError(model tokenizer.ModelID, err error) *models.ErrorDetail {
	var loadErr *tokenizer.LoadError
	if stdErrors.As(err, &loadErr) {
		return errors.NewTokenizerLoadError(string(model), loadErr.Err.Error())
	}
	var runtimeErr *tokenizer.RuntimeError
	if stdErrors.As(err, &runtimeErr) {
		return errors.NewTokenizerRuntimeError(string(model), runtimeErr.Err.Error())
	}
	return errors.NewTokenizerRuntimeError(string(model), err.Error())
}

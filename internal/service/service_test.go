package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codebase-context-server/internal/config"
	"codebase-context-server/internal/errors"
	"codebase-context-server/internal/filesystem"
	"codebase-context-server/internal/lock"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/sandbox"
	"codebase-context-server/internal/tokenizer"
)

// wordEncoder tokenizes on whitespace so analyze tests never load a real
// model.
type wordEncoder struct{}

func (wordEncoder) Encode(text string) ([]int, error) {
	return make([]int, len(strings.Fields(text))), nil
}

func testConfig(dirs ...string) *config.Config {
	return &config.Config{
		AllowedDirectories:  dirs,
		TokenizerModel:      string(tokenizer.DefaultModel),
		Transport:           "stdio",
		Port:                8080,
		MaxFileSizeMB:       10,
		OperationTimeoutSec: 5,
	}
}

func newTestEngine(t *testing.T, dirs ...string) *DefaultEngine {
	t.Helper()
	validator, err := sandbox.NewValidator(dirs)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	tokens := tokenizer.NewService(func(tokenizer.ModelID) (tokenizer.Encoder, error) {
		return wordEncoder{}, nil
	})
	engine, err := NewDefaultEngine(
		filesystem.NewOSAdapter(), validator, lock.NewFlockManager(), tokens, testConfig(dirs...))
	if err != nil {
		t.Fatalf("NewDefaultEngine: %v", err)
	}
	return engine
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return full
}

func TestAnalyzeDirectoryAggregates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello\nworld\n")
	writeFile(t, root, ".gitignore", "b.txt\n")
	writeFile(t, root, "b.txt", "ignored\n")

	resp, errDetail := newTestEngine(t, root).AnalyzeDirectory(models.AnalyzeDirectoryRequest{Path: root})
	if errDetail != nil {
		t.Fatalf("AnalyzeDirectory: %v", errDetail)
	}
	if resp.TotalFiles != 1 {
		t.Fatalf("totalFiles = %d, want 1 (ignored and hidden files excluded)", resp.TotalFiles)
	}
	record := resp.Files[0]
	if record.Path != "a.txt" {
		t.Errorf("path = %q, want a.txt", record.Path)
	}
	if record.LineCount != 3 {
		t.Errorf("lineCount = %d, want 3", record.LineCount)
	}
	if record.TokenCount != 2 {
		t.Errorf("tokenCount = %d, want 2", record.TokenCount)
	}
	if resp.TotalTokens != 2 {
		t.Errorf("totalTokens = %d, want 2", resp.TotalTokens)
	}
}

func TestAnalyzeDirectoryExcludesEscapingSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "hello\nworld\n")
	writeFile(t, root, "ok.txt", "fine\n")
	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	resp, errDetail := newTestEngine(t, root).AnalyzeDirectory(models.AnalyzeDirectoryRequest{Path: root})
	if errDetail != nil {
		t.Fatalf("AnalyzeDirectory: %v", errDetail)
	}
	if resp.TotalFiles != 1 || resp.Files[0].Path != "ok.txt" {
		t.Fatalf("out-of-sandbox symlink target must not be analyzed: %+v", resp.Files)
	}
}

func TestAnalyzeDirectoryOutsideSandbox(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	_, errDetail := newTestEngine(t, root).AnalyzeDirectory(models.AnalyzeDirectoryRequest{Path: outside})
	if errDetail == nil || errDetail.Code != errors.CodeAccessDenied {
		t.Fatalf("expected access denied, got %v", errDetail)
	}
}

func TestAnalyzeDirectoryRejectsFilePath(t *testing.T) {
	root := t.TempDir()
	file := writeFile(t, root, "f.txt", "x\n")

	_, errDetail := newTestEngine(t, root).AnalyzeDirectory(models.AnalyzeDirectoryRequest{Path: file})
	if errDetail == nil || errDetail.Code != errors.CodeInvalidParams {
		t.Fatalf("expected invalid params for non-directory, got %v", errDetail)
	}
}

func TestAnalyzeDirectoryUnknownModel(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t, root)
	engine.model = tokenizer.ModelID("no-such-model")

	_, errDetail := engine.AnalyzeDirectory(models.AnalyzeDirectoryRequest{Path: root})
	if errDetail == nil || errDetail.Code != errors.CodeTokenizerError {
		t.Fatalf("expected tokenizer error, got %v", errDetail)
	}
}

func TestReadFilesBatchIsolation(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	good := writeFile(t, root, "good.txt", "content\n")
	escaped := filepath.Join(outside, "secret.txt")
	missing := filepath.Join(root, "missing.txt")

	resp, errDetail := newTestEngine(t, root).ReadFiles(models.ReadFilesRequest{
		Paths: []string{good, escaped, missing},
	})
	if errDetail != nil {
		t.Fatalf("ReadFiles: %v", errDetail)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}

	if resp.Results[0].Error != "" || resp.Results[0].Content != "content\n" {
		t.Errorf("good file: %+v", resp.Results[0])
	}
	if resp.Results[1].Error == "" || !strings.Contains(resp.Results[1].Error, "Access denied") {
		t.Errorf("escaped path should fail with access denied: %+v", resp.Results[1])
	}
	if resp.Results[2].Error == "" || !strings.Contains(resp.Results[2].Error, "not found") {
		t.Errorf("missing path should fail with not found: %+v", resp.Results[2])
	}
	// Result order follows request order even with failures in the middle.
	for i, want := range []string{good, escaped, missing} {
		if resp.Results[i].Path != want {
			t.Errorf("result %d path = %q, want %q", i, resp.Results[i].Path, want)
		}
	}
}

func TestReadFilesBinaryByExtension(t *testing.T) {
	root := t.TempDir()
	binary := writeFile(t, root, "image.png", "\x89PNG")

	resp, errDetail := newTestEngine(t, root).ReadFiles(models.ReadFilesRequest{Paths: []string{binary}})
	if errDetail != nil {
		t.Fatalf("ReadFiles: %v", errDetail)
	}
	if resp.Results[0].Error != "Binary file" {
		t.Errorf("error = %q, want \"Binary file\"", resp.Results[0].Error)
	}
}

func TestReadFilesUndecodableContent(t *testing.T) {
	root := t.TempDir()
	raw := writeFile(t, root, "data.dat", string([]byte{0xff, 0xfe, 0x00}))

	resp, errDetail := newTestEngine(t, root).ReadFiles(models.ReadFilesRequest{Paths: []string{raw}})
	if errDetail != nil {
		t.Fatalf("ReadFiles: %v", errDetail)
	}
	if resp.Results[0].Error != "Binary file" {
		t.Errorf("error = %q, want \"Binary file\"", resp.Results[0].Error)
	}
}

func TestReadFilesDirectoryPath(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	resp, errDetail := newTestEngine(t, root).ReadFiles(models.ReadFilesRequest{Paths: []string{sub}})
	if errDetail != nil {
		t.Fatalf("ReadFiles: %v", errDetail)
	}
	if !strings.Contains(resp.Results[0].Error, "directory") {
		t.Errorf("error = %q, want a directory complaint", resp.Results[0].Error)
	}
}

func TestReadFilesEmptyBatch(t *testing.T) {
	root := t.TempDir()
	_, errDetail := newTestEngine(t, root).ReadFiles(models.ReadFilesRequest{})
	if errDetail == nil || errDetail.Code != errors.CodeInvalidParams {
		t.Fatalf("expected invalid params, got %v", errDetail)
	}
}

func TestWriteFileLifecycle(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t, root)
	path := filepath.Join(root, "notes.txt")

	resp, errDetail := engine.WriteFile(models.WriteFileRequest{Path: path, Content: "hello\nworld\n"})
	if errDetail != nil {
		t.Fatalf("WriteFile: %v", errDetail)
	}
	if resp.Status != "created" || !resp.Created {
		t.Errorf("first write: status=%q created=%v, want created", resp.Status, resp.Created)
	}

	// Writing identical content again is idempotent.
	resp, errDetail = engine.WriteFile(models.WriteFileRequest{Path: path, Content: "hello\nworld\n"})
	if errDetail != nil {
		t.Fatalf("WriteFile: %v", errDetail)
	}
	if resp.Status != "unchanged" || resp.Diff != "" {
		t.Errorf("identical write: status=%q diff=%q, want unchanged with no diff", resp.Status, resp.Diff)
	}

	resp, errDetail = engine.WriteFile(models.WriteFileRequest{Path: path, Content: "hello\nthere\n"})
	if errDetail != nil {
		t.Fatalf("WriteFile: %v", errDetail)
	}
	if resp.Status != "modified" {
		t.Errorf("status = %q, want modified", resp.Status)
	}
	if !strings.Contains(resp.Diff, "-world") || !strings.Contains(resp.Diff, "+there") {
		t.Errorf("diff missing expected hunks:\n%s", resp.Diff)
	}
}

func TestWriteFileOutsideSandbox(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	_, errDetail := newTestEngine(t, root).WriteFile(models.WriteFileRequest{
		Path:    filepath.Join(outside, "f.txt"),
		Content: "x",
	})
	if errDetail == nil || errDetail.Code != errors.CodeAccessDenied {
		t.Fatalf("expected access denied, got %v", errDetail)
	}
}

func TestWriteFileContentTooLarge(t *testing.T) {
	root := t.TempDir()
	engine := newTestEngine(t, root)
	engine.maxFileSize = 8

	_, errDetail := engine.WriteFile(models.WriteFileRequest{
		Path:    filepath.Join(root, "big.txt"),
		Content: "exceeds the limit",
	})
	if errDetail == nil || errDetail.Code != errors.CodeFileTooLarge {
		t.Fatalf("expected file too large, got %v", errDetail)
	}
}

func TestEditFileReplacesAndDiffs(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "doc.txt", "hello\nworld\n")

	resp, errDetail := newTestEngine(t, root).EditFile(models.EditFileRequest{
		Path:    path,
		OldText: "world",
		NewText: "there",
	})
	if errDetail != nil {
		t.Fatalf("EditFile: %v", errDetail)
	}
	if !strings.Contains(resp.Diff, "-world") || !strings.Contains(resp.Diff, "+there") {
		t.Errorf("diff missing expected hunks:\n%s", resp.Diff)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello\nthere\n" {
		t.Errorf("content = %q", content)
	}
}

func TestEditFileTextNotFound(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "doc.txt", "content\n")

	_, errDetail := newTestEngine(t, root).EditFile(models.EditFileRequest{
		Path:    path,
		OldText: "absent",
		NewText: "x",
	})
	if errDetail == nil || errDetail.Code != errors.CodeTextNotFound {
		t.Fatalf("expected text not found, got %v", errDetail)
	}
}

func TestEditFileMissingFile(t *testing.T) {
	root := t.TempDir()

	_, errDetail := newTestEngine(t, root).EditFile(models.EditFileRequest{
		Path:    filepath.Join(root, "absent.txt"),
		OldText: "a",
		NewText: "b",
	})
	if errDetail == nil || errDetail.Code != errors.CodeFileSystemError {
		t.Fatalf("expected file system error, got %v", errDetail)
	}
}

func TestEditFileEmptyOldText(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "doc.txt", "content\n")

	_, errDetail := newTestEngine(t, root).EditFile(models.EditFileRequest{Path: path, NewText: "x"})
	if errDetail == nil || errDetail.Code != errors.CodeInvalidParams {
		t.Fatalf("expected invalid params, got %v", errDetail)
	}
}

func TestNewDefaultEngineRequiresCollaborators(t *testing.T) {
	root := t.TempDir()
	validator, err := sandbox.NewValidator([]string{root})
	if err != nil {
		t.Fatal(err)
	}
	tokens := tokenizer.NewService(nil)

	if _, err := NewDefaultEngine(nil, validator, lock.NewFlockManager(), tokens, testConfig(root)); err == nil {
		t.Error("expected error for nil adapter")
	}
	if _, err := NewDefaultEngine(filesystem.NewOSAdapter(), nil, lock.NewFlockManager(), tokens, testConfig(root)); err == nil {
		t.Error("expected error for nil validator")
	}
	if _, err := NewDefaultEngine(filesystem.NewOSAdapter(), validator, nil, tokens, testConfig(root)); err == nil {
		t.Error("expected error for nil lock manager")
	}
	if _, err := NewDefaultEngine(filesystem.NewOSAdapter(), validator, lock.NewFlockManager(), nil, testConfig(root)); err == nil {
		t.Error("expected error for nil tokenizer")
	}
	if _, err := NewDefaultEngine(filesystem.NewOSAdapter(), validator, lock.NewFlockManager(), tokens, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"codebase-context-server/internal/tokenizer"
)

// Config holds all configurable values for the server.
type Config struct {
	// AllowedDirectories is the ordered allow-list of sandbox roots. At
	// least one is required; the process refuses to start without it.
	AllowedDirectories []string
	// TokenizerModel selects the tokenizer from the fixed catalog.
	TokenizerModel      string
	Transport           string
	Port                int
	MaxFileSizeMB       int
	OperationTimeoutSec int
}

// dirList implements flag.Value so -dir can be passed multiple times.
type dirList []string

func (d *dirList) String() string { return strings.Join(*d, ",") }

func (d *dirList) Set(value string) error {
	if value == "" {
		return fmt.Errorf("directory must not be empty")
	}
	*d = append(*d, value)
	return nil
}

// ParseFlags parses the command-line flags and populates the Config struct.
func ParseFlags() *Config {
	cfg := &Config{}
	var dirs dirList

	flag.Var(&dirs, "dir", "Allowed root directory (repeatable, at least one required)")
	flag.StringVar(&cfg.TokenizerModel, "model", string(tokenizer.DefaultModel),
		"Tokenizer model identifier (see startup output for the catalog)")
	flag.StringVar(&cfg.Transport, "transport", "stdio", "Transport protocol (http or stdio)")
	flag.IntVar(&cfg.Port, "port", 8080, "Port for HTTP transport")
	flag.IntVar(&cfg.MaxFileSizeMB, "max-file-size", 10, "Maximum file size in MB")
	flag.IntVar(&cfg.OperationTimeoutSec, "timeout", 30, "Operation timeout in seconds")

	flag.Parse()
	cfg.AllowedDirectories = dirs
	return cfg
}

// Validate checks the configuration. An unknown tokenizer model surfaces
// the full catalog so the caller can correct the selection.
func (c *Config) Validate() error {
	if len(c.AllowedDirectories) == 0 {
		return fmt.Errorf("at least one allowed directory is required (-dir)")
	}
	for _, dir := range c.AllowedDirectories {
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("allowed directory does not exist: %s", dir)
			}
			return fmt.Errorf("error accessing allowed directory %s: %v", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("allowed path is not a directory: %s", dir)
		}
	}

	if !tokenizer.Supported(tokenizer.ModelID(c.TokenizerModel)) {
		return fmt.Errorf("unsupported tokenizer model %q; supported models: %s",
			c.TokenizerModel, tokenizer.CatalogString())
	}

	if c.Transport != "http" && c.Transport != "stdio" {
		return fmt.Errorf("transport must be 'http' or 'stdio'")
	}
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535")
	}
	if c.MaxFileSizeMB < 1 || c.MaxFileSizeMB > 100 {
		return fmt.Errorf("max file size must be between 1 and 100 MB")
	}
	if c.OperationTimeoutSec < 5 || c.OperationTimeoutSec > 300 {
		return fmt.Errorf("operation timeout must be between 5 and 300 seconds")
	}
	return nil
}

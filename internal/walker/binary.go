package walker

import (
	"path/filepath"
	"strings"
)

// binaryExtensions is a fixed table of common non-text suffixes. This is a
// heuristic filter, not content sniffing: files with unlisted extensions
// but binary content are not excluded here.
var binaryExtensions = map[string]bool{
	// compiled artifacts and executables
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".bin": true, ".o": true, ".obj": true, ".a": true, ".lib": true,
	".class": true, ".pyc": true, ".pyo": true, ".wasm": true,
	// archives
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true,
	".7z": true, ".rar": true, ".jar": true, ".war": true,
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".tiff": true, ".psd": true,
	// audio / video
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true, ".m4a": true,
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
	// fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// documents and databases
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".db": true, ".sqlite": true, ".sqlite3": true,
}

// IsBinaryPath reports whether the filename carries an extension from the
// binary exclusion table.
func IsBinaryPath(name string) bool {
	return binaryExtensions[strings.ToLower(filepath.Ext(name))]
}

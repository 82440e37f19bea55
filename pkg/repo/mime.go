package repo

import (
	"bytes"
	"net/http"
	"os"
	"strings"
)

// sniffLen is the prefix http.DetectContentType considers.
const sniffLen = 512

// DetectFileMime reads the head of a file and returns its MIME type.
// It returns "application/octet-stream" if identification fails.
func DetectFileMime(filePath string) string {
	f, err := os.Open(filePath)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buffer := make([]byte, sniffLen)
	n, _ := f.Read(buffer)
	return DetectMime(buffer[:n])
}

// DetectMime returns the MIME type of data. Empty input counts as text.
func DetectMime(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(data)
}

// IsTextMime reports whether a MIME type is worth feeding to a model.
func IsTextMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	for _, s := range []string{"json", "xml", "javascript", "yaml", "toml"} {
		if strings.Contains(mimeType, s) {
			return true
		}
	}
	return false
}

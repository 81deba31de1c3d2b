package constants

import "strings"

// PDFContentType is the only content type the extraction service accepts.
const PDFContentType = "application/pdf"

// AllowedExtensions holds the file extensions picked up by uploads and folder watching.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

package audio

import (
	"path/filepath"
	"strings"
)

// FileExtContentTypes maps file extensions to content types
var FileExtContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".weba": "audio/webm",
}

// ContentType returns the content type for name, or application/octet-stream
func ContentType(name string) string {
	if ct, ok := FileExtContentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

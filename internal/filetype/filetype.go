// Package filetype classifies uploads by extension and resolves their content type.
package filetype

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Category is the display category of a file.
type Category string

const (
	Audio    Category = "audio"
	Image    Category = "image"
	Document Category = "document"
	Other    Category = "other"
)

var (
	audioExtensions    = set("mp3", "wav", "flac", "ogg", "aac", "m4a", "wma", "aiff", "au")
	imageExtensions    = set("png", "jpg", "jpeg", "gif", "bmp", "webp", "svg")
	documentExtensions = set("txt", "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx")
	archiveExtensions  = set("zip", "rar", "7z", "tar", "gz")
)

// DefaultAllowedExtensions is the upload allow-list used when none is configured.
var DefaultAllowedExtensions = []string{
	"txt", "pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
	"png", "jpg", "jpeg", "gif", "bmp", "webp", "svg",
	"mp3", "wav", "flac", "ogg", "aac", "m4a", "wma", "aiff", "au",
	"zip", "rar", "7z", "tar", "gz",
}

func set(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// Extension returns the lower-cased extension without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Classify maps a filename to its Category.
func Classify(filename string) Category {
	ext := Extension(filename)
	if _, ok := audioExtensions[ext]; ok {
		return Audio
	}
	if _, ok := imageExtensions[ext]; ok {
		return Image
	}
	if _, ok := documentExtensions[ext]; ok {
		return Document
	}
	return Other
}

// IconClass returns the Font Awesome class used by clients to render the file.
func IconClass(filename string) string {
	switch Classify(filename) {
	case Audio:
		return "fas fa-music"
	case Image:
		return "fas fa-image"
	case Document:
		return "fas fa-file-alt"
	}
	if _, ok := archiveExtensions[Extension(filename)]; ok {
		return "fas fa-file-archive"
	}
	return "fas fa-file"
}

// Policy decides which uploads are admitted.
type Policy struct {
	Allowed     []string
	Blocked     []string
	MaxFileSize int64
}

// Allows reports whether filename has an allowed, non-blocked extension.
func (p Policy) Allows(filename string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	for _, b := range p.Blocked {
		if strings.EqualFold(strings.TrimPrefix(b, "."), ext) {
			return false
		}
	}
	for _, a := range p.Allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// ContentType returns the declared type when it is meaningful, otherwise
// sniffs the content, otherwise guesses from the extension.
func ContentType(filename, declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt.String() != "application/octet-stream" {
			return mt.String()
		}
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// ABOUTME: Pre-flight media policy checks for inbound attachments.
// ABOUTME: Extension allow-lists, byte ceilings and photo dimension bounds.

// Package constraints validates inbound media against size, extension
// and dimension policy before any download or paid API call happens.
// Checks are pure; a failure returns a human-readable reason naming
// the violated rule and the effective limit.
package constraints

import (
	"fmt"
	"strings"
)

// MediaKind selects which policy applies to an attachment.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVoice    MediaKind = "voice"
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
)

const (
	// MaxFileSize is the shared ceiling for documents, photos and voice.
	MaxFileSize = 5 * 1024 * 1024
	// MaxVideoFileSize is the distinct, larger ceiling for video.
	MaxVideoFileSize = 20 * 1024 * 1024
	// MaxPhotoDimension bounds either side of a photo, in pixels.
	MaxPhotoDimension = 2000
)

var (
	photoExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	voiceExtensions = []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm", ".oga", ".ogg"}
	docExtensions   = []string{".txt", ".tex", ".docx", ".doc", ".html", ".rtf", ".rtfd", ".pdf", ".pptx", ".md", ".tar", ".zip"}
	videoExtensions = []string{".mp4", ".avi", ".mov", ".wmv", ".flv"}
)

// Checker holds the effective policy. The zero value is not usable;
// construct with NewChecker.
type Checker struct {
	maxFileSize      int64
	maxVideoFileSize int64
	maxDimension     int
	allowed          map[MediaKind][]string
}

// NewChecker returns a checker with the default policy.
func NewChecker() *Checker {
	return &Checker{
		maxFileSize:      MaxFileSize,
		maxVideoFileSize: MaxVideoFileSize,
		maxDimension:     MaxPhotoDimension,
		allowed: map[MediaKind][]string{
			MediaPhoto:    photoExtensions,
			MediaVoice:    voiceExtensions,
			MediaDocument: docExtensions,
			MediaVideo:    videoExtensions,
		},
	}
}

// Check validates extension and size for the given kind. Photos should
// use CheckPhoto so dimensions are validated too.
func (c *Checker) Check(kind MediaKind, ext string, sizeBytes int64) (bool, string) {
	if ok, reason := c.checkExtension(kind, ext); !ok {
		return false, reason
	}
	limit := c.maxFileSize
	if kind == MediaVideo {
		limit = c.maxVideoFileSize
	}
	return c.checkSize(sizeBytes, limit)
}

// CheckPhoto validates a photo's extension, byte size and pixel bounds.
func (c *Checker) CheckPhoto(ext string, sizeBytes int64, width, height int) (bool, string) {
	if ok, reason := c.Check(MediaPhoto, ext, sizeBytes); !ok {
		return false, reason
	}
	if width > c.maxDimension || height > c.maxDimension {
		return false, fmt.Sprintf("Image dimensions are too large: %dx%d px. Max allowed is %d px per side.",
			width, height, c.maxDimension)
	}
	return true, ""
}

func (c *Checker) checkExtension(kind MediaKind, ext string) (bool, string) {
	ext = strings.ToLower(ext)
	for _, allowed := range c.allowed[kind] {
		if ext == allowed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("Unsupported file type %q. Allowed types: %s.",
		ext, strings.Join(c.allowed[kind], ", "))
}

func (c *Checker) checkSize(sizeBytes, limit int64) (bool, string) {
	if sizeBytes > limit {
		return false, fmt.Sprintf("The file is too large: %.2f MB. Max allowed is %.2f MB.",
			toMB(sizeBytes), toMB(limit))
	}
	return true, ""
}

func toMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}

package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind is the coarse media class of a file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindOther Kind = "other"
)

var (
	imageMIMETypes = map[string]bool{
		"image/jpeg":    true,
		"image/jpg":     true,
		"image/png":     true,
		"image/gif":     true,
		"image/webp":    true,
		"image/svg+xml": true,
		"image/bmp":     true,
		"image/tiff":    true,
		"image/heic":    true,
		"image/heif":    true,
		"image/avif":    true,
		"image/jxl":     true,
	}

	videoMIMETypes = map[string]bool{
		"video/mp4":        true,
		"video/mpeg":       true,
		"video/ogg":        true,
		"video/webm":       true,
		"video/quicktime":  true,
		"video/x-msvideo":  true,
		"video/avi":        true,
		"video/x-flv":      true,
		"video/3gpp":       true,
		"video/x-matroska": true,
		"video/av1":        true,
	}

	audioMIMETypes = map[string]bool{
		"audio/mpeg":   true,
		"audio/ogg":    true,
		"audio/wav":    true,
		"audio/wave":   true,
		"audio/webm":   true,
		"audio/aac":    true,
		"audio/mp4":    true,
		"audio/x-m4a":  true,
		"audio/m4a":    true,
		"audio/opus":   true,
		"audio/flac":   true,
		"audio/x-flac": true,
		"audio/3gpp":   true,
		"audio/3gpp2":  true,
	}
)

// KindFromMIME classifies a MIME type. Parameters such as charset are ignored.
func KindFromMIME(mimeType string) Kind {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	mimeType = strings.ToLower(mimeType)

	switch {
	case imageMIMETypes[mimeType]:
		return KindImage
	case videoMIMETypes[mimeType]:
		return KindVideo
	case audioMIMETypes[mimeType]:
		return KindAudio
	default:
		return KindOther
	}
}

// KindFromExtension classifies a file by its extension.
// Containers shared by audio and video (.ogg, .webm, .mp4) count as video.
func KindFromExtension(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".tiff", ".tif", ".heic", ".heif", ".avif", ".jxl":
		return KindImage
	case ".mp4", ".mpeg", ".mpg", ".ogg", ".webm", ".mov", ".avi", ".flv", ".3gp", ".mkv", ".av1":
		return KindVideo
	case ".mp3", ".wav", ".aac", ".m4a", ".opus", ".flac", ".3g2":
		return KindAudio
	default:
		return KindOther
	}
}

// detectKind trusts sniffed content first and falls back to the extension
// when sniffing only produced a generic type.
func detectKind(sniffed, name string) Kind {
	if k := KindFromMIME(sniffed); k != KindOther {
		return k
	}
	return KindFromExtension(name)
}

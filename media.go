package imgbed

import (
	"mime"
	"strings"
)

// MediaKind classifies an upload by its declared content type. Each kind is
// stored through a different upstream call.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// mediaCategories maps a top-level MIME type to its MediaKind. Anything not
// listed is stored as a document. New categories are added here only.
var mediaCategories = map[string]MediaKind{
	"image": MediaPhoto,
	"video": MediaVideo,
	"audio": MediaAudio,
}

// ClassifyContentType returns the MediaKind for a declared content type.
// Missing, unparseable and unlisted types are MediaDocument.
func ClassifyContentType(contentType string) MediaKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return MediaDocument
	}
	top, _, _ := strings.Cut(mediaType, "/")
	if kind, ok := mediaCategories[top]; ok {
		return kind
	}
	return MediaDocument
}

// DefaultContentType is served for extensions missing from the table, so
// that browsers render rather than download unknown assets.
const DefaultContentType = "image/jpeg"

// contentTypes is the fixed extension to MIME type table used when serving
// files. Upstream content types are never trusted.
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"bmp":  "image/bmp",
	"ico":  "image/x-icon",
	"avif": "image/avif",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"json": "application/json",
	"pdf":  "application/pdf",
	"txt":  "text/plain; charset=utf-8",
}

// ContentTypeForExtension returns the MIME type for a file extension,
// falling back to DefaultContentType.
func ContentTypeForExtension(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return DefaultContentType
}

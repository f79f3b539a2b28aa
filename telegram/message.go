package telegram

import (
	"github.com/dukerupert/imgbed"
)

// apiResponse is the envelope every Bot API method answers with.
type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Result      T      `json:"result"`
}

// Message is the result of the send* methods. Exactly one media field is
// populated, depending on the method used and on how Telegram chose to
// store the file.
type Message struct {
	MessageID int64       `json:"message_id"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Document  *FileRef    `json:"document,omitempty"`
	Video     *FileRef    `json:"video,omitempty"`
	Audio     *FileRef    `json:"audio,omitempty"`
	Animation *FileRef    `json:"animation,omitempty"`
}

// PhotoSize is one resolution of a stored photo. Telegram lists sizes from
// smallest to largest.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// FileRef describes a stored document, video, audio or animation.
type FileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

func (f *FileRef) fileID() string {
	if f == nil {
		return ""
	}
	return f.FileID
}

// File is the result of getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// extractors holds one extraction rule per result shape.
var extractors = map[imgbed.MediaKind]func(m *Message) string{
	imgbed.MediaPhoto: func(m *Message) string {
		// The last size is the original resolution.
		if n := len(m.Photo); n > 0 {
			return m.Photo[n-1].FileID
		}
		return ""
	},
	imgbed.MediaDocument: func(m *Message) string {
		if id := m.Document.fileID(); id != "" {
			return id
		}
		return m.Animation.fileID()
	},
	imgbed.MediaVideo: func(m *Message) string {
		return m.Video.fileID()
	},
	imgbed.MediaAudio: func(m *Message) string {
		return m.Audio.fileID()
	},
}

// extractOrder is tried when the shape of the method used is absent.
var extractOrder = []imgbed.MediaKind{
	imgbed.MediaPhoto,
	imgbed.MediaDocument,
	imgbed.MediaVideo,
	imgbed.MediaAudio,
}

// FileID returns the storage handle of the message, preferring the shape
// that corresponds to kind. Returns "" when the message holds no file.
func (m *Message) FileID(kind imgbed.MediaKind) string {
	if m == nil {
		return ""
	}
	if extract, ok := extractors[kind]; ok {
		if id := extract(m); id != "" {
			return id
		}
	}
	for _, k := range extractOrder {
		if id := extractors[k](m); id != "" {
			return id
		}
	}
	return ""
}

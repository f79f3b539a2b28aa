package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:secret-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// received is what the fake Bot API saw for one send call.
type received struct {
	method      string
	chatID      string
	field       string
	filename    string
	contentType string
	body        string
}

// fakeBotAPI answers send calls with reply and records what it received.
func fakeBotAPI(t *testing.T, reply string, got *received) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
			return
		}
		got.method = strings.TrimPrefix(r.URL.Path, prefix)

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.chatID = r.FormValue("chat_id")
		for field, headers := range r.MultipartForm.File {
			got.field = field
			got.filename = headers[0].Filename
			got.contentType = headers[0].Header.Get("Content-Type")
			f, err := headers[0].Open()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			b, _ := io.ReadAll(f)
			f.Close()
			got.body = string(b)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
}

func newTestClient(t *testing.T, apiURL string, preserve bool) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Token:          testToken,
		ChatID:         "-100200300",
		APIURL:         apiURL,
		PreserveImages: preserve,
		Timeout:        5 * time.Second,
	}, testLogger(), nil)
	require.NoError(t, err)
	return c
}

func uploadFile(name, contentType, body string) *imgbed.UploadFile {
	return &imgbed.UploadFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Extension:   imgbed.ExtensionFromFilename(name),
		Body:        strings.NewReader(body),
	}
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{ChatID: "1"}, testLogger(), nil)
	assert.Equal(t, imgbed.ECONFIG, imgbed.ErrorCode(err))
	assert.Equal(t, "Missing bot token", imgbed.ErrorMessage(err))

	_, err = NewClient(Config{Token: testToken}, testLogger(), nil)
	assert.Equal(t, imgbed.ECONFIG, imgbed.ErrorCode(err))

	c, err := NewClient(Config{Token: testToken, ChatID: "1"}, testLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, c.apiURL)
	assert.Equal(t, "telegram", c.Name())
}

func TestClient_Store_MethodSelection(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		preserve    bool
		reply       string
		wantMethod  string
		wantField   string
		wantHandle  string
	}{
		{
			name:        "image goes to sendPhoto and keeps the largest size",
			filename:    "cat.png",
			contentType: "image/png",
			reply:       `{"ok":true,"result":{"message_id":1,"photo":[{"file_id":"small"},{"file_id":"medium"},{"file_id":"large"}]}}`,
			wantMethod:  "sendPhoto",
			wantField:   "photo",
			wantHandle:  "large",
		},
		{
			name:        "two photo sizes",
			filename:    "cat.jpg",
			contentType: "image/jpeg",
			reply:       `{"ok":true,"result":{"message_id":2,"photo":[{"file_id":"A"},{"file_id":"B"}]}}`,
			wantMethod:  "sendPhoto",
			wantField:   "photo",
			wantHandle:  "B",
		},
		{
			name:        "video",
			filename:    "clip.mp4",
			contentType: "video/mp4",
			reply:       `{"ok":true,"result":{"message_id":3,"video":{"file_id":"vid"}}}`,
			wantMethod:  "sendVideo",
			wantField:   "video",
			wantHandle:  "vid",
		},
		{
			name:        "audio",
			filename:    "song.mp3",
			contentType: "audio/mpeg",
			reply:       `{"ok":true,"result":{"message_id":4,"audio":{"file_id":"aud"}}}`,
			wantMethod:  "sendAudio",
			wantField:   "audio",
			wantHandle:  "aud",
		},
		{
			name:        "anything else is a document",
			filename:    "report.pdf",
			contentType: "application/pdf",
			reply:       `{"ok":true,"result":{"message_id":5,"document":{"file_id":"doc"}}}`,
			wantMethod:  "sendDocument",
			wantField:   "document",
			wantHandle:  "doc",
		},
		{
			name:        "missing content type is a document",
			filename:    "blob",
			contentType: "",
			reply:       `{"ok":true,"result":{"message_id":6,"document":{"file_id":"doc2"}}}`,
			wantMethod:  "sendDocument",
			wantField:   "document",
			wantHandle:  "doc2",
		},
		{
			name:        "preserved images are sent as documents",
			filename:    "cat.png",
			contentType: "image/png",
			preserve:    true,
			reply:       `{"ok":true,"result":{"message_id":7,"document":{"file_id":"original"}}}`,
			wantMethod:  "sendDocument",
			wantField:   "document",
			wantHandle:  "original",
		},
		{
			name:        "gif stored as animation",
			filename:    "loop.gif",
			contentType: "image/gif",
			reply:       `{"ok":true,"result":{"message_id":8,"animation":{"file_id":"anim"},"document":{"file_id":"anim-doc"}}}`,
			wantMethod:  "sendPhoto",
			wantField:   "photo",
			wantHandle:  "anim-doc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got received
			srv := fakeBotAPI(t, tt.reply, &got)
			defer srv.Close()

			c := newTestClient(t, srv.URL, tt.preserve)
			handle, err := c.Store(context.Background(), uploadFile(tt.filename, tt.contentType, "payload"))
			require.NoError(t, err)

			assert.Equal(t, tt.wantHandle, handle)
			assert.Equal(t, tt.wantMethod, got.method)
			assert.Equal(t, tt.wantField, got.field)
			assert.Equal(t, "-100200300", got.chatID)
			assert.Equal(t, tt.filename, got.filename)
			assert.Equal(t, "payload", got.body)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, got.contentType)
			}
		})
	}
}

func TestClient_Store_Errors(t *testing.T) {
	t.Run("provider rejection surfaces its description", func(t *testing.T) {
		var got received
		srv := fakeBotAPI(t, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, &got)
		defer srv.Close()

		c := newTestClient(t, srv.URL, false)
		_, err := c.Store(context.Background(), uploadFile("a.jpg", "image/jpeg", "x"))
		assert.Equal(t, imgbed.EUPSTREAM, imgbed.ErrorCode(err))
		assert.Equal(t, "Bad Request: chat not found", imgbed.ErrorMessage(err))
	})

	t.Run("success without a file", func(t *testing.T) {
		var got received
		srv := fakeBotAPI(t, `{"ok":true,"result":{"message_id":9}}`, &got)
		defer srv.Close()

		c := newTestClient(t, srv.URL, false)
		_, err := c.Store(context.Background(), uploadFile("a.jpg", "image/jpeg", "x"))
		assert.Equal(t, imgbed.EINTERNAL, imgbed.ErrorCode(err))
		assert.Equal(t, "Failed to get file ID from storage provider response", imgbed.ErrorMessage(err))
	})

	t.Run("unreachable provider never leaks the token", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		c := newTestClient(t, srv.URL, false)
		_, err := c.Store(context.Background(), uploadFile("a.jpg", "image/jpeg", "x"))
		require.Error(t, err)
		assert.Equal(t, imgbed.EINTERNAL, imgbed.ErrorCode(err))
		assert.NotContains(t, err.Error(), testToken)
	})

	t.Run("non JSON reply", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, false)
		_, err := c.Store(context.Background(), uploadFile("a.jpg", "image/jpeg", "x"))
		assert.Equal(t, imgbed.EINTERNAL, imgbed.ErrorCode(err))
		assert.Equal(t, "Invalid response from storage provider", imgbed.ErrorMessage(err))
	})
}

// fakeGetFile answers getFile for a fixed set of known file_ids.
func fakeGetFile(t *testing.T, known map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/bot"+testToken+"/getFile":
			id := r.URL.Query().Get("file_id")
			path, ok := known[id]
			if !ok {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(apiResponse[File]{ErrorCode: 400, Description: "Bad Request: invalid file_id"})
				return
			}
			_ = json.NewEncoder(w).Encode(apiResponse[File]{OK: true, Result: File{FileID: id, FilePath: path}})
		case strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/"):
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = io.WriteString(w, "file bytes")
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
		}
	}))
}

func TestClient_Resolve(t *testing.T) {
	srv := fakeGetFile(t, map[string]string{"AgAD+x/y": "photos/file_1.jpg"})
	defer srv.Close()
	c := newTestClient(t, srv.URL, false)

	t.Run("known handle", func(t *testing.T) {
		location, err := c.Resolve(context.Background(), imgbed.EncodeReference("AgAD+x/y", "png"))
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/file/bot"+testToken+"/photos/file_1.jpg", location)
	})

	t.Run("unknown handle", func(t *testing.T) {
		_, err := c.Resolve(context.Background(), imgbed.Reference("nope.png"))
		assert.Equal(t, imgbed.ENOTFOUND, imgbed.ErrorCode(err))
	})

	t.Run("empty handle", func(t *testing.T) {
		_, err := c.Resolve(context.Background(), imgbed.Reference(".png"))
		assert.Equal(t, imgbed.ENOTFOUND, imgbed.ErrorCode(err))
	})

	t.Run("rejected token is not a missing file", func(t *testing.T) {
		bad, err := NewClient(Config{Token: "999:wrong", ChatID: "1", APIURL: srv.URL}, testLogger(), nil)
		require.NoError(t, err)

		_, err = bad.Resolve(context.Background(), imgbed.Reference("AgAD+x/y.png"))
		assert.Equal(t, imgbed.EINTERNAL, imgbed.ErrorCode(err))
		assert.NotContains(t, err.Error(), "999:wrong")
	})
}

func TestClient_Open(t *testing.T) {
	srv := fakeGetFile(t, map[string]string{"id": "documents/file_2.pdf"})
	defer srv.Close()
	c := newTestClient(t, srv.URL, false)

	location, err := c.Resolve(context.Background(), imgbed.Reference("id.pdf"))
	require.NoError(t, err)

	blob, err := c.Open(context.Background(), location)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, http.StatusOK, blob.StatusCode)
	b, err := io.ReadAll(blob.Body)
	require.NoError(t, err)
	assert.Equal(t, "file bytes", string(b))
}

func TestMessage_FileID(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		kind imgbed.MediaKind
		want string
	}{
		{"nil message", nil, imgbed.MediaPhoto, ""},
		{"empty message", &Message{}, imgbed.MediaDocument, ""},
		{"single photo size", &Message{Photo: []PhotoSize{{FileID: "only"}}}, imgbed.MediaPhoto, "only"},
		{"photo requested, document returned", &Message{Document: &FileRef{FileID: "doc"}}, imgbed.MediaPhoto, "doc"},
		{"video requested, animation returned", &Message{Animation: &FileRef{FileID: "anim"}}, imgbed.MediaVideo, "anim"},
		{"audio requested, document returned", &Message{Document: &FileRef{FileID: "voice"}}, imgbed.MediaAudio, "voice"},
		{"preferred shape wins", &Message{Photo: []PhotoSize{{FileID: "p"}}, Video: &FileRef{FileID: "v"}}, imgbed.MediaVideo, "v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.FileID(tt.kind))
		})
	}
}

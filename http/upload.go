package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
)

// uploadField is the multipart field carrying the file.
const uploadField = "file"

// defaultFilename names uploads whose part carries no filename.
const defaultFilename = "file"

func (s *Server) handleUpload(c echo.Context) error {
	store, err := s.requireBlobStore()
	if err != nil {
		return err
	}

	fh, err := c.FormFile(uploadField)
	if err != nil {
		return imgbed.Invalid("No file uploaded")
	}

	src, err := fh.Open()
	if err != nil {
		return imgbed.Internal("Failed to read uploaded file", err)
	}
	defer src.Close()

	filename := fh.Filename
	if filename == "" {
		filename = defaultFilename
	}

	file := &imgbed.UploadFile{
		Filename:    filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Extension:   imgbed.ExtensionFromFilename(filename),
		Body:        src,
	}

	handle, err := store.Store(c.Request().Context(), file)
	if err != nil {
		s.log(c).Error("failed to store upload",
			slog.String("storage", store.Name()),
			slog.String("kind", string(file.Kind())),
			slog.String("error", err.Error()),
		)
		return err
	}

	ref := imgbed.EncodeReference(handle, file.Extension)

	s.recordMetadata(c, &imgbed.MetadataRecord{
		Reference:   ref,
		FileName:    file.Filename,
		FileSize:    file.Size,
		ContentType: file.ContentType,
		UploadedAt:  time.Now().UTC(),
	})

	s.log(c).Info("file uploaded",
		slog.String("reference", string(ref)),
		slog.String("kind", string(file.Kind())),
		slog.Int64("size", file.Size),
	)

	return RespondOK(c, []UploadResult{{Src: ref.Path()}})
}

// recordMetadata hands the record to the task runner. The write does not
// use the request context and its outcome never reaches the client.
func (s *Server) recordMetadata(c echo.Context, rec *imgbed.MetadataRecord) {
	if s.metadataService == nil {
		return
	}

	svc := s.metadataService
	requestID := imgbed.RequestIDFromContext(c.Request().Context())
	s.tasks.Submit(imgbed.Task{
		Name:    imgbed.TaskRecordMetadata,
		Timeout: s.MetadataTimeout,
		Run: func(ctx context.Context) error {
			ctx = imgbed.NewContextWithRequestID(ctx, requestID)
			if err := svc.RecordMetadata(ctx, rec); err != nil {
				return fmt.Errorf("record metadata for %s (request %s): %w", rec.Reference, requestID, err)
			}
			return nil
		},
	})
}

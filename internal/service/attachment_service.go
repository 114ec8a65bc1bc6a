package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/observability"
)

// FileStorage abstracts the blob store attachments are streamed to.
type FileStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader) (string, error)
}

// AttachmentService uploads message attachments to blob storage. A failed
// file never aborts the batch: it is skipped with a user-facing warning and
// the send proceeds with whatever made it through.
type AttachmentService interface {
	UploadAll(ctx context.Context, conversationID string, files []*multipart.FileHeader, alreadyAttached int) (dto.UploadResult, error)
}

type attachmentService struct {
	storage    FileStorage
	maxPerSend int
	maxSize    int64
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewAttachmentService constructs an attachment uploader.
func NewAttachmentService(storage FileStorage, maxPerSend, maxSizeMB int, logger zerolog.Logger) AttachmentService {
	if maxPerSend <= 0 {
		maxPerSend = 5
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}

	return &attachmentService{
		storage:    storage,
		maxPerSend: maxPerSend,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		logger:     logger.With().Str("component", "attachment_service").Logger(),
		tracer:     otel.Tracer("github.com/rentora/rentora-api/internal/service/attachment"),
	}
}

func (s *attachmentService) UploadAll(ctx context.Context, conversationID string, files []*multipart.FileHeader, alreadyAttached int) (dto.UploadResult, error) {
	ctx, span := s.tracer.Start(ctx, "attachment.upload_all", trace.WithAttributes(
		attribute.String("conversation_id", conversationID),
		attribute.Int("file_count", len(files)),
	))
	defer span.End()

	result := dto.UploadResult{Attachments: []dto.AttachmentPayload{}}

	capacity := s.maxPerSend - alreadyAttached
	if capacity < 0 {
		capacity = 0
	}

	if len(files) > capacity {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"a message can carry at most %d attachments; %d file(s) were not queued", s.maxPerSend, len(files)-capacity))
		files = files[:capacity]
	}

	for _, file := range files {
		attachment, err := s.uploadOne(ctx, conversationID, file)
		if err != nil {
			observability.UploadRejected().WithLabelValues(rejectReason(err)).Inc()
			s.logger.Warn().Err(err).
				Str("conversation_id", conversationID).
				Str("file", file.Filename).
				Msg("attachment upload failed, skipping file")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%q could not be uploaded and was skipped", file.Filename))
			continue
		}

		observability.UploadRequests().WithLabelValues(attachment.Kind).Inc()
		result.Attachments = append(result.Attachments, attachment)
	}

	return result, nil
}

func (s *attachmentService) uploadOne(ctx context.Context, conversationID string, file *multipart.FileHeader) (dto.AttachmentPayload, error) {
	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file.Size > s.maxSize {
		return dto.AttachmentPayload{}, errTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return dto.AttachmentPayload{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return dto.AttachmentPayload{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.AttachmentPayload{}, errTooLarge
	}

	kind := "file"
	if strings.HasPrefix(mimetype.Detect(buf.Bytes()).String(), "image/") {
		kind = "image"
	}

	key := fmt.Sprintf("attachments/%s/%d_%s", conversationID, time.Now().UnixMilli(), file.Filename)
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return dto.AttachmentPayload{}, fmt.Errorf("storage upload: %w", err)
	}

	return dto.AttachmentPayload{
		Kind: kind,
		URL:  url,
		Name: file.Filename,
		Size: int64(buf.Len()),
	}, nil
}

var errTooLarge = fmt.Errorf("file exceeds maximum allowed size")

func rejectReason(err error) string {
	if err == errTooLarge {
		return "size"
	}
	return "storage"
}

package service

import (
	"bufio"
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ImageService uploads step images and hands back their public URLs.
type ImageService struct {
	store  backend.Storage
	bucket string
	to     config.Timeouts
	log    *zap.Logger
}

// NewImageService constructs an ImageService writing to bucket.
func NewImageService(store backend.Storage, bucket string, to config.Timeouts, log *zap.Logger) *ImageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImageService{store: store, bucket: bucket, to: to, log: log.Named("images")}
}

// Attach uploads body under a random key keeping the extension of filename
// and returns the public URL. Only image content is accepted.
func (s *ImageService) Attach(ctx context.Context, filename string, body io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ctype := mime.TypeByExtension(ext)
	if ctype == "" {
		br := bufio.NewReader(body)
		head, _ := br.Peek(512)
		ctype = http.DetectContentType(head)
		body = br
	}
	if !strings.HasPrefix(ctype, "image/") {
		return "", errs.Invalid("image", "must be an image, got "+ctype)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	key := id.String() + ext
	err = runErrWithDeadline(ctx, s.log, "images.upload", s.to.Upload, func(ctx context.Context) error {
		return s.store.Upload(ctx, s.bucket, key, body, ctype)
	})
	if err != nil {
		s.log.Error("image upload failed", zap.String("file", filename), zap.Error(err))
		return "", err
	}
	s.log.Debug("image uploaded", zap.String("key", key), zap.String("content_type", ctype))
	return s.store.PublicURL(s.bucket, key), nil
}

// AttachToStep uploads an image and writes its URL into steps[index].
func (s *ImageService) AttachToStep(ctx context.Context, steps []model.StepInput, index int, filename string, body io.Reader) error {
	if index < 0 || index >= len(steps) {
		return errs.Invalid("steps", "image index out of range")
	}
	url, err := s.Attach(ctx, filename, body)
	if err != nil {
		return err
	}
	steps[index].ImageURL = url
	return nil
}

package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestImageService_Attach(t *testing.T) {
	store := &fakeStorage{}
	s := NewImageService(store, "manual-images", fastTimeouts(), nil)

	url, err := s.Attach(context.Background(), "Router Lights.PNG", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.Equal(t, "manual-images", store.bucket)
	require.True(t, strings.HasSuffix(store.key, ".png"), store.key)
	_, err = uuid.FromString(strings.TrimSuffix(store.key, ".png"))
	require.NoError(t, err, "key is a random uuid")
	require.Equal(t, "image/png", store.contentType)
	require.Equal(t, pngHeader, store.body)
	require.Equal(t, store.PublicURL("manual-images", store.key), url)
}

func TestImageService_Attach_SniffsUnknownExtension(t *testing.T) {
	store := &fakeStorage{}
	s := NewImageService(store, "b", fastTimeouts(), nil)

	_, err := s.Attach(context.Background(), "screenshot", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Equal(t, "image/png", store.contentType)
	require.Equal(t, pngHeader, store.body, "sniffed bytes are still uploaded")

	_, err = s.Attach(context.Background(), "notes", strings.NewReader("just text"))
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestImageService_AttachToStep_FailureIsLocal(t *testing.T) {
	store := &fakeStorage{}
	s := NewImageService(store, "b", fastTimeouts(), nil)
	steps := []model.StepInput{
		{Title: "one", Content: "a", ImageURL: "https://old/1.png"},
		{Title: "two", Content: "b"},
	}

	require.NoError(t, s.AttachToStep(context.Background(), steps, 1, "x.png", bytes.NewReader(pngHeader)))
	require.Contains(t, steps[1].ImageURL, "/storage/v1/object/public/b/")
	require.Equal(t, "https://old/1.png", steps[0].ImageURL)

	store.err = errors.New("bucket full")
	before := append([]model.StepInput(nil), steps...)
	require.Error(t, s.AttachToStep(context.Background(), steps, 0, "y.png", bytes.NewReader(pngHeader)))
	require.Equal(t, before, steps, "a failed upload changes nothing")

	require.ErrorIs(t, s.AttachToStep(context.Background(), steps, 5, "y.png", bytes.NewReader(pngHeader)), errs.ErrValidation)
}

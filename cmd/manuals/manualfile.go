package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/render"
)

// stepAttacher uploads an image for one step of a form.
type stepAttacher interface {
	AttachToStep(ctx context.Context, steps []model.StepInput, index int, filename string, body io.Reader) error
}

// readManualFile reads a manual definition (YAML or JSON) from path, "-" meaning stdin.
// It returns the document and the directory relative image paths resolve against.
func readManualFile(path string, stdin io.Reader) (render.Document, string, error) {
	var (
		b   []byte
		err error
		dir string
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
		dir, _ = os.Getwd()
	} else {
		b, err = os.ReadFile(path)
		dir = filepath.Dir(path)
	}
	if err != nil {
		return render.Document{}, "", err
	}
	var doc render.Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return render.Document{}, "", fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, dir, nil
}

// documentInput turns doc into the form input. Steps naming a local image get it
// uploaded; a failed upload is reported in warnings and leaves only that step without an image.
func documentInput(ctx context.Context, doc render.Document, dir string, images stepAttacher) (model.ManualInput, []string) {
	in := model.ManualInput{
		Title:       doc.Title,
		Category:    model.Category(doc.Category),
		Description: doc.Description,
		Steps:       make([]model.StepInput, len(doc.Steps)),
	}
	for i, s := range doc.Steps {
		in.Steps[i] = model.StepInput{Title: s.Title, Content: s.Content, ImageURL: s.ImageURL}
	}

	var warnings []string
	for i, s := range doc.Steps {
		if strings.TrimSpace(s.Image) == "" {
			continue
		}
		p := s.Image
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if err := attachFile(ctx, images, in.Steps, i, p); err != nil {
			warnings = append(warnings, fmt.Sprintf("step %d: image %s not attached: %v", i+1, s.Image, err))
		}
	}
	return in, warnings
}

func attachFile(ctx context.Context, images stepAttacher, steps []model.StepInput, i int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return images.AttachToStep(ctx, steps, i, filepath.Base(path), f)
}

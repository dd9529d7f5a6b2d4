// Package render formats manuals for the terminal, for YAML round-trips and as standalone HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/and161185/troubleshooter/internal/model"
)

// Text writes a plain-text view of m: header, description, numbered steps.
func Text(w io.Writer, m model.Manual) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.Title)
	fmt.Fprintf(&b, "[%s] by %s, %s\n", m.Category, orDash(m.AuthorName), formatTime(m.CreatedAt))
	if m.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", m.Description)
	}
	for _, s := range m.Steps {
		fmt.Fprintf(&b, "\n%d. %s\n", s.StepOrder, s.Title)
		for _, line := range strings.Split(s.Content, "\n") {
			fmt.Fprintf(&b, "   %s\n", line)
		}
		if s.ImageURL != "" {
			fmt.Fprintf(&b, "   image: %s\n", s.ImageURL)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Document is the YAML shape of a manual. It is also the input format of manual files.
type Document struct {
	ID          string         `yaml:"id,omitempty"`
	Title       string         `yaml:"title"`
	Category    string         `yaml:"category"`
	Description string         `yaml:"description"`
	Author      string         `yaml:"author,omitempty"`
	CreatedAt   string         `yaml:"created_at,omitempty"`
	Steps       []DocumentStep `yaml:"steps"`
}

// DocumentStep is one step of a Document. Image is a local file to upload,
// ImageURL an already uploaded one.
type DocumentStep struct {
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Image    string `yaml:"image,omitempty"`
	ImageURL string `yaml:"image_url,omitempty"`
}

// ToDocument converts m for YAML output.
func ToDocument(m model.Manual) Document {
	d := Document{
		ID:          m.ID.String(),
		Title:       m.Title,
		Category:    string(m.Category),
		Description: m.Description,
		Author:      m.AuthorName,
		CreatedAt:   formatTime(m.CreatedAt),
		Steps:       make([]DocumentStep, 0, len(m.Steps)),
	}
	for _, s := range m.Steps {
		d.Steps = append(d.Steps, DocumentStep{Title: s.Title, Content: s.Content, ImageURL: s.ImageURL})
	}
	return d
}

// YAML writes m as a Document.
func YAML(w io.Writer, m model.Manual) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToDocument(m)); err != nil {
		return err
	}
	return enc.Close()
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var page = template.Must(template.New("manual").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article>
<h1>{{.Title}}</h1>
<p class="meta"><span class="category">{{.Category}}</span> by {{.Author}}{{if .Created}}, {{.Created}}{{end}}</p>
<p class="description">{{.Description}}</p>
<ol class="steps">
{{- range .Steps}}
<li id="step-{{.Order}}">
<h2>{{.Title}}</h2>
{{.Body}}
{{- if .ImageURL}}
<img src="{{.ImageURL}}" alt="{{.Title}}">
{{- end}}
</li>
{{- end}}
</ol>
</article>
</body>
</html>
`))

type htmlStep struct {
	Order    int
	Title    string
	Body     template.HTML
	ImageURL string
}

// HTML renders m as a standalone page. Step content is treated as Markdown.
func HTML(w io.Writer, m model.Manual) error {
	steps := make([]htmlStep, 0, len(m.Steps))
	for _, s := range m.Steps {
		var buf bytes.Buffer
		if err := md.Convert([]byte(s.Content), &buf); err != nil {
			return fmt.Errorf("render step %d: %w", s.StepOrder, err)
		}
		steps = append(steps, htmlStep{
			Order:    s.StepOrder,
			Title:    s.Title,
			Body:     template.HTML(buf.String()), //nolint:gosec // goldmark escapes raw HTML by default
			ImageURL: s.ImageURL,
		})
	}
	return page.Execute(w, struct {
		Title       string
		Category    model.Category
		Author      string
		Created     string
		Description string
		Steps       []htmlStep
	}{
		Title:       m.Title,
		Category:    m.Category,
		Author:      orDash(m.AuthorName),
		Created:     formatTime(m.CreatedAt),
		Description: m.Description,
		Steps:       steps,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

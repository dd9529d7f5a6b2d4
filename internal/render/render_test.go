package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/and161185/troubleshooter/internal/model"
)

func sample() model.Manual {
	id := uuid.Must(uuid.NewV4())
	return model.Manual{
		ID:          id,
		Title:       "Printer offline",
		Category:    model.CategoryPrinter,
		Description: "Bring the office printer back",
		AuthorName:  "alice",
		CreatedAt:   time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Steps: []model.Step{
			{ManualID: id, Title: "Check cable", Content: "Make sure it is **plugged**", StepOrder: 1},
			{ManualID: id, Title: "Restart <spooler>", Content: "Run:\n\n    net stop spooler", ImageURL: "https://x/y.png", StepOrder: 2},
		},
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, sample()))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "Printer offline\n[Printer] by alice, 2025-03-04\n"))
	require.Contains(t, out, "\n1. Check cable\n")
	require.Contains(t, out, "\n2. Restart <spooler>\n")
	require.Contains(t, out, "   image: https://x/y.png\n")
	require.Less(t, strings.Index(out, "1. Check"), strings.Index(out, "2. Restart"))
}

func TestYAML_ReadsBackAsDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, sample()))

	var d Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &d))
	require.Equal(t, "Printer offline", d.Title)
	require.Equal(t, "Printer", d.Category)
	require.Len(t, d.Steps, 2)
	require.Equal(t, "https://x/y.png", d.Steps[1].ImageURL)
	require.Empty(t, d.Steps[0].Image)
}

func TestHTML_MarkdownAndEscaping(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, sample()))
	out := buf.String()

	require.Contains(t, out, "<title>Printer offline</title>")
	require.Contains(t, out, "<strong>plugged</strong>")
	require.Contains(t, out, "<code>net stop spooler")
	require.Contains(t, out, "Restart &lt;spooler&gt;")
	require.Contains(t, out, `<img src="https://x/y.png"`)
	require.Contains(t, out, `id="step-2"`)
}

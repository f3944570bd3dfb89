// ABOUTME: Markdown rendering for replies: styled terminal output and sanitized HTML
// ABOUTME: Terminal rendering falls back to the raw text when glamour cannot render

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/coven-console/internal/stream"
)

// DefaultWidth is the wrap width used when the terminal width is unknown.
const DefaultWidth = 80

var (
	renderersMu sync.Mutex
	renderers   = map[int]*glamour.TermRenderer{}

	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	policy = bluemonday.UGCPolicy()
)

// termRenderer must be called with renderersMu held
func termRenderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := renderers[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	renderers[width] = r
	return r, nil
}

// Terminal renders markdown for a terminal of the given width.
// On any rendering failure the input is returned unchanged.
func Terminal(markdown string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	// TermRenderer buffers internally and is not safe for concurrent use
	renderersMu.Lock()
	defer renderersMu.Unlock()

	r, err := termRenderer(width)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// HTML converts markdown to HTML and strips anything unsafe.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.message { border-radius: 8px; padding: 0.75rem 1rem; margin: 0.75rem 0; }
.user { background: #eef2ff; }
.assistant { background: #f6f6f6; }
.meta { color: #666; font-size: 0.8rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Exported {{.Exported}}</p>
{{range .Messages}}<div class="message {{.Role}}">
<div class="meta">{{.Role}} · {{.Time}}{{if .Tools}} · tools: {{.Tools}}{{end}}</div>
{{.Body}}
</div>
{{end}}</body>
</html>
`))

type transcriptMessage struct {
	Role  string
	Time  string
	Tools string
	Body  template.HTML
}

// TranscriptHTML builds a standalone HTML page for a conversation.
// User messages are escaped verbatim; assistant messages are rendered as markdown.
func TranscriptHTML(title string, msgs []stream.Message) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = "Conversation"
	}

	items := make([]transcriptMessage, 0, len(msgs))
	for _, m := range msgs {
		item := transcriptMessage{
			Role:  m.Role,
			Tools: strings.Join(m.ToolsUsed, ", "),
		}
		if !m.CreatedAt.IsZero() {
			item.Time = m.CreatedAt.UTC().Format("2006-01-02 15:04 MST")
		}

		if m.Role == stream.RoleAssistant {
			body, err := HTML(m.Content)
			if err != nil {
				return "", err
			}
			item.Body = template.HTML(body)
		} else {
			item.Body = template.HTML("<p>" + template.HTMLEscapeString(m.Content) + "</p>")
		}
		items = append(items, item)
	}

	var buf bytes.Buffer
	err := transcriptTmpl.Execute(&buf, struct {
		Title    string
		Exported string
		Messages []transcriptMessage
	}{
		Title:    title,
		Exported: time.Now().UTC().Format(time.RFC3339),
		Messages: items,
	})
	if err != nil {
		return "", fmt.Errorf("rendering transcript: %w", err)
	}
	return buf.String(), nil
}

// ABOUTME: Tests for markdown rendering and transcript export
// ABOUTME: Checks sanitization, fallback behaviour and escaping of user text

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/stream"
)

func TestHTML_Converts(t *testing.T) {
	out, err := HTML("# Title\n\nSome **bold** text.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<table>")
}

func TestHTML_StripsScripts(t *testing.T) {
	out, err := HTML("hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestTerminal_KeepsText(t *testing.T) {
	out := Terminal("plain words here", 0)
	assert.Contains(t, out, "plain words here")
}

func TestTranscriptHTML(t *testing.T) {
	msgs := []stream.Message{
		{Role: stream.RoleUser, Content: "<b>hi</b> & bye", CreatedAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)},
		{Role: stream.RoleAssistant, Content: "**hello**", ToolsUsed: []string{"search_documents"}},
	}

	page, err := TranscriptHTML("", msgs)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Conversation</title>")
	assert.Contains(t, page, "&lt;b&gt;hi&lt;/b&gt; &amp; bye")
	assert.Contains(t, page, "<strong>hello</strong>")
	assert.Contains(t, page, "tools: search_documents")
	assert.Contains(t, page, "2026-01-02 03:04 UTC")
}

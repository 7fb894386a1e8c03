package main

import (
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"

	"corkboard/internal/board"
)

func readClipboardText() (string, error) {
	if runtime.GOOS == "darwin" {
		if output, err := exec.Command("pbpaste", "-Prefer", "txt").Output(); err == nil {
			return string(output), nil
		}
	}
	return clipboard.ReadAll()
}

// pastedItem decides what a clipboard paste becomes: an IMAGE for an image
// data URI, otherwise cleaned-up TEXT. It reports false for blank input.
func pastedItem(raw string) (board.ItemType, string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isImageDataURI(trimmed) {
		return board.TypeImage, trimmed, true
	}
	text := cleanClipboardText(raw)
	if isHTML(text) {
		text = stripTags(text)
	}
	text = strings.Trim(text, "\n")
	if strings.TrimSpace(text) == "" {
		return "", "", false
	}
	return board.TypeText, text, true
}

func isImageDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/") && strings.Contains(s, ",")
}

func isHTML(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, "<") &&
		(strings.Contains(t, "<html") || strings.Contains(t, "<body") || strings.Contains(t, "<div") || strings.Contains(t, "<p"))
}

var htmlEntities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
	"&nbsp;", " ",
)

// stripTags drops markup, turning block-level closings into line breaks.
func stripTags(html string) string {
	var sb strings.Builder
	var tag strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			name := ""
			if fields := strings.Fields(tag.String()); len(fields) > 0 {
				name = strings.ToLower(fields[0])
			}
			if name == "br" || name == "br/" || name == "/p" || name == "/div" || name == "/li" {
				sb.WriteByte('\n')
			}
		case inTag:
			tag.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return htmlEntities.Replace(sb.String())
}

// cleanClipboardText normalizes line endings and drops control characters
// other than newline and tab.
func cleanClipboardText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r >= 32 && r != 127 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

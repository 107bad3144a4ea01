package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	markdownMu       sync.Mutex
	markdownRenderer *glamour.TermRenderer
	cachedWidth      int
	cachedStyle      string
)

// RenderMarkdown renders content for the terminal with the given glamour
// style ("dark", "light", "notty"). content is returned unchanged if
// rendering fails.
func RenderMarkdown(content string, width int, style string) string {
	if content == "" {
		return ""
	}
	if width < 1 {
		width = 80
	}
	if style == "" {
		style = "dark"
	}

	markdownMu.Lock()
	defer markdownMu.Unlock()

	if markdownRenderer == nil || width != cachedWidth || style != cachedStyle {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		markdownRenderer = renderer
		cachedWidth = width
		cachedStyle = style
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

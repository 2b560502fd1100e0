package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"

	"github.com/markis/omnom/internal/producer"
	"github.com/markis/omnom/internal/stream"
)

type TerminalRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
	buffer    strings.Builder
}

func NewTerminalRenderer(out io.Writer, usePlainText bool) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(120),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		out:       out,
		markdown:  md,
		plainText: usePlainText || md == nil,
	}
}

// Render writes chunk contents as they arrive, flushing at paragraph breaks
// so markdown blocks are rendered whole.
func (t *TerminalRenderer) Render(chunks <-chan stream.Chunk) error {
	for chunk := range chunks {
		if chunk.Error != nil {
			return fmt.Errorf("stream error: %w", chunk.Error)
		}
		if chunk.Done {
			continue
		}

		t.buffer.WriteString(chunk.Content)
		content := t.buffer.String()

		if idx := findMarkdownBreakPoint(content); idx > 0 {
			if err := t.renderContent(content[:idx]); err != nil {
				return err
			}
			// Reset buffer with remaining content
			remaining := content[idx:]
			t.buffer.Reset()
			t.buffer.WriteString(remaining)
		}
	}

	// Render any remaining content
	if remaining := t.buffer.String(); remaining != "" {
		t.buffer.Reset()
		if err := t.renderContent(remaining); err != nil {
			return err
		}
	}
	return nil
}

// RenderSummary writes a table of what a push did, followed by its per-chunk
// errors.
func (t *TerminalRenderer) RenderSummary(title string, s producer.Summary) error {
	if t.plainText {
		_, err := io.WriteString(t.out, plainSummary(title, s))
		return err
	}
	return t.renderContent(markdownSummary(title, s))
}

func summaryRows(s producer.Summary) [][2]string {
	return [][2]string{
		{"chunks", fmt.Sprint(s.Chunks)},
		{"bytes", fmt.Sprint(s.Bytes)},
		{"parsed", fmt.Sprint(s.Done)},
		{"errors", fmt.Sprint(len(s.Errors))},
		{"retries", fmt.Sprint(s.Continues)},
		{"carried", fmt.Sprint(s.Carried)},
		{"incomplete", fmt.Sprint(s.Incomplete)},
	}
}

func plainSummary(title string, s producer.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", title)
	for _, row := range summaryRows(s) {
		fmt.Fprintf(&b, "  %-10s %s\n", row[0], row[1])
	}
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "  chunk %d: %v\n", e.Chunk, e.Code)
	}
	return b.String()
}

func markdownSummary(title string, s producer.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n| | |\n|---|---|\n", title)
	for _, row := range summaryRows(s) {
		fmt.Fprintf(&b, "| %s | %s |\n", row[0], row[1])
	}
	if len(s.Errors) > 0 {
		b.WriteString("\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- chunk %d: `%v`\n", e.Chunk, e.Code)
		}
	}
	return b.String()
}

func (t *TerminalRenderer) renderContent(content string) error {
	if t.plainText {
		_, err := io.WriteString(t.out, content)
		return err
	}

	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "#") {
		fmt.Fprintln(t.out)
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}

	_, err = fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return err
}

func findMarkdownBreakPoint(content string) int {
	const marker string = "\n\n"
	lastBreak := -1
	idx := strings.LastIndex(content, marker)
	if idx > lastBreak {
		lastBreak = idx + len(marker)
	}
	return lastBreak
}

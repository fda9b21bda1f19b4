package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/D0liphin/Testnice/internal/model"
)

// Renderer writes observed completions to an output stream.
type Renderer interface {
	Render(c model.Completion) error
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	stylePid    = lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true)
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true)
)

// TextRenderer prints one line per completion with the pid highlighted.
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes colorized text to stdout.
func NewTextRenderer() *TextRenderer {
	return &TextRenderer{w: os.Stdout}
}

func (r *TextRenderer) Render(c model.Completion) error {
	ts := c.SeenAt.Format("15:04:05.000")
	line := fmt.Sprintf("%s %s %s", ts, stylePid.Render(fmt.Sprintf("pid %d", c.PID)), styleSource.Render(c.Source))
	_, err := fmt.Fprintln(r.w, line)
	return err
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each completion as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to stdout.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(os.Stdout)}
}

func (r *JSONRenderer) Render(c model.Completion) error {
	return r.enc.Encode(c)
}

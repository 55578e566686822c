package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const defaultWidth = 100

// Renderer writes reports to a stream. Terminals get glamour styling,
// anything else gets the raw markdown.
type Renderer struct {
	out   io.Writer
	style bool
	width int
}

// NewRenderer inspects out. Only an *os.File attached to a terminal is styled.
func NewRenderer(out io.Writer, plain bool) *Renderer {
	r := &Renderer{out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && !plain {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			r.style = true
			if w, _, err := term.GetSize(fd); err == nil && w > 20 {
				r.width = w - 4
			}
		}
	}
	return r
}

// Styled reports whether output goes through glamour.
func (r *Renderer) Styled() bool {
	return r.style
}

// Render writes rep.
func (r *Renderer) Render(rep Report) error {
	md := rep.Markdown()
	if !r.style {
		_, err := io.WriteString(r.out, md)
		return err
	}

	g, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	s, err := g.Render(md)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	_, err = io.WriteString(r.out, s)
	return err
}

// Banner writes the application banner. It is skipped on non-terminals.
func (r *Renderer) Banner(version string) {
	if !r.style {
		return
	}
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{`  ____                 _`, "#f97316"},
		{` |  _ \ ___  __ _  ___| |_ ___  _ __`, "#fb923c"},
		{` | |_) / _ \/ _' |/ __| __/ _ \| '__|`, "#fbbf24"},
		{` |  _ <  __/ (_| | (__| || (_) | |`, "#facc15"},
		{` |_| \_\___|\__,_|\___|\__\___/|_|`, "#a3e635"},
	}
	fmt.Fprintln(r.out)
	for _, l := range lines {
		fmt.Fprintln(r.out, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(r.out, termenv.String(" "+version).Faint())
	fmt.Fprintln(r.out)
}

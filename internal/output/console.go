package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/milwrite/botwatch/internal/domain"
)

const ruleWidth = 62

var (
	styleBanner = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)

	styleTitle = lipgloss.NewStyle().Bold(true)

	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	styleStamp = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Console mirrors child output and prints supervisor banners
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	styled bool
	quiet  bool
}

// NewConsole writes stdout lines to out and stderr lines to errOut. Styling
// is enabled only when out is a terminal.
func NewConsole(out, errOut io.Writer, quiet bool) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		styled: IsTerminal(out),
		quiet:  quiet,
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Line mirrors one captured line prefixed with its timestamp
func (c *Console) Line(l domain.LogLine) {
	if c.quiet {
		return
	}
	stamp := "[" + l.Timestamp.UTC().Format(time.RFC3339Nano) + "]"
	if c.styled {
		stamp = styleStamp.Render(stamp)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.out
	if l.Stream == domain.StreamErr {
		w = c.errOut
	}
	fmt.Fprintf(w, "%s %s\n", stamp, l.Text)
}

// Banner prints a framed block; the first line is the title
func (c *Console) Banner(title string, lines ...string) {
	if c.quiet {
		return
	}

	var text string
	if c.styled {
		body := append([]string{styleTitle.Render(title)}, lines...)
		text = styleBanner.Render(strings.Join(body, "\n"))
	} else {
		rule := strings.Repeat("═", ruleWidth)
		var b strings.Builder
		b.WriteString(rule + "\n")
		b.WriteString("  " + title + "\n")
		for _, l := range lines {
			b.WriteString("  " + l + "\n")
		}
		b.WriteString(rule)
		text = b.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// Info prints a plain supervisor message
func (c *Console) Info(format string, a ...any) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s\n", fmt.Sprintf(format, a...))
}

// Warn prints a supervisor warning to errOut; never suppressed by quiet
func (c *Console) Warn(format string, a ...any) {
	msg := "⚠ " + fmt.Sprintf(format, a...)
	if c.styled {
		msg = styleWarn.Render(msg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, msg)
}

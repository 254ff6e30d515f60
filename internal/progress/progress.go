// Package progress shows the steps of a run on the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Steps reports a sequence of named steps, each with a spinner while it
// runs, and a progress bar for steps made of several items.
type Steps struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	bar     progress.Model
	current string
}

// New creates a Steps writing to out. The spinner only animates when out
// is a terminal.
func New(out io.Writer) *Steps {
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		sp.Disable()
	}
	return &Steps{
		out:     out,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// Start begins a step
func (s *Steps) Start(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = msg
	s.spinner.Suffix = " " + msg
	s.spinner.Start()
}

// Done ends the current step successfully
func (s *Steps) Done(msg string) {
	s.finish(doneStyle.Render("✓") + " " + s.label(msg))
}

// Fail ends the current step with an error
func (s *Steps) Fail(err error) {
	s.finish(fmt.Sprintf("%s %s: %v", failStyle.Render("✗"), s.label(""), err))
}

// Advance shows how many of the items of the current step are done
func (s *Steps) Advance(done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 {
		return
	}
	s.spinner.Suffix = fmt.Sprintf(" %s %s %d/%d", s.current, s.bar.ViewAs(float64(done)/float64(total)), done, total)
	if !s.spinner.Active() {
		fmt.Fprintf(s.out, "%s %d/%d\n", s.current, done, total)
	}
}

func (s *Steps) label(msg string) string {
	if msg != "" {
		return msg
	}
	return s.current
}

func (s *Steps) finish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spinner.Stop()
	fmt.Fprintln(s.out, line)
	s.current = ""
}

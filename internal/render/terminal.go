// Package render is the terminal front end for a session: it resolves
// stimulus keys to image paths, shows each trial and reads the participant's
// choice from the keyboard.
package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/responses"
)

// Palette used by the terminal screens.
var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorPrimary = lipgloss.Color("#20B9B4")
	colorBorder  = lipgloss.Color("#16858E")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
)

const progressWidth = 30

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
	box     lipgloss.Style
	bar     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorAccent),
		label:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		muted:   r.NewStyle().Foreground(colorMuted),
		warning: r.NewStyle().Foreground(colorWarning),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		bar: r.NewStyle().Foreground(colorAccent),
	}
}

// Stimuli resolves stimulus keys to files.
type Stimuli struct {
	Dir       string
	Extension string
}

// Path returns <Dir>/<key><Extension>.
func (s Stimuli) Path(key string) string {
	return filepath.Join(s.Dir, key+s.Extension)
}

// Missing returns the paths among keys that do not exist on disk.
func (s Stimuli) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		p := s.Path(k)
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

// Terminal shows trials on out and reads choices from in.
type Terminal struct {
	out     io.Writer
	stimuli Stimuli
	st      styles

	in        *bufio.Scanner
	startOnce sync.Once
	closeOnce sync.Once
	lines     chan string
	done      chan struct{}
	readErr   error
}

// NewTerminal creates a terminal front end.
func NewTerminal(in io.Reader, out io.Writer, stimuli Stimuli) *Terminal {
	return &Terminal{
		out:     out,
		stimuli: stimuli,
		st:      newStyles(lipgloss.NewRenderer(out)),
		in:      bufio.NewScanner(in),
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
}

// ProgressBar renders a fixed-width bar for progress in [0, 1].
func ProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// ShowTrial renders one trial screen.
func (t *Terminal) ShowTrial(view models.TrialView) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.st.title.Render(fmt.Sprintf("Trial %d / %d", view.TrialIndex, view.TotalTrials)))
	fmt.Fprintf(&b, "%s %3.0f%%\n\n", t.st.bar.Render(ProgressBar(view.Progress, progressWidth)), view.Progress*100)
	fmt.Fprintf(&b, "%s %s\n\n", t.st.label.Render("Reference:"), t.stimuli.Path(view.StimulusRefKey))
	b.WriteString("Options (choose the most similar)\n")
	fmt.Fprintf(&b, "  %s %s\n", t.st.label.Render("[1]"), t.stimuli.Path(view.StimulusNearKey))
	fmt.Fprintf(&b, "  %s %s", t.st.label.Render("[2]"), t.stimuli.Path(view.StimulusFarKey))

	fmt.Fprintln(t.out, t.st.box.Render(b.String()))
	if missing := t.stimuli.Missing(view.StimulusRefKey, view.StimulusNearKey, view.StimulusFarKey); len(missing) > 0 {
		fmt.Fprintln(t.out, t.st.warning.Render("missing stimuli: "+strings.Join(missing, ", ")))
	}
}

func (t *Terminal) startReader() {
	go func() {
		defer close(t.lines)
		for t.in.Scan() {
			select {
			case t.lines <- t.in.Text():
			case <-t.done:
				return
			}
		}
		t.readErr = t.in.Err()
	}()
}

// Close stops the input reader. The reader exits once it next hands over a
// line, or at end of input. Choose returns io.EOF after Close.
func (t *Terminal) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Choose prompts until the participant enters 1 or 2. It returns io.EOF when
// input ends or the terminal is closed and ctx.Err() when ctx is cancelled.
func (t *Terminal) Choose(ctx context.Context) (models.Option, error) {
	t.startOnce.Do(t.startReader)

	for {
		fmt.Fprint(t.out, t.st.muted.Render("choice [1/2]: "))
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return models.OptionNone, ctx.Err()
		case <-t.done:
			return models.OptionNone, io.EOF
		case line, ok := <-t.lines:
			if !ok {
				if t.readErr != nil {
					return models.OptionNone, fmt.Errorf("reading choice: %w", t.readErr)
				}
				return models.OptionNone, io.EOF
			}
			opt, err := models.ParseOption(strings.TrimSpace(line))
			if err == nil {
				return opt, nil
			}
			fmt.Fprintln(t.out, t.st.warning.Render("please enter 1 or 2"))
		}
	}
}

// ShowSummary renders the end screen.
func (t *Terminal) ShowSummary(sum responses.Summary, csvPath string, aborted bool) {
	heading := "Session complete"
	if aborted {
		heading = "Session aborted"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", t.st.title.Render(heading))
	fmt.Fprintf(&b, "%s %d\n", t.st.label.Render("Trials answered:"), sum.Trials)
	fmt.Fprintf(&b, "%s %d near, %d far\n", t.st.label.Render("Choices:"), sum.ChoseNear, sum.ChoseFar)
	if sum.CatchTrials > 0 {
		fmt.Fprintf(&b, "%s %d/%d (%.0f%%)\n", t.st.label.Render("Catch trials correct:"),
			sum.CatchCorrect, sum.CatchTrials, sum.CatchAcc*100)
	}
	if csvPath != "" {
		fmt.Fprintf(&b, "%s %s", t.st.label.Render("Responses saved to:"), csvPath)
	} else {
		b.WriteString(t.st.muted.Render("No responses to save."))
	}

	fmt.Fprintln(t.out, t.st.box.Render(strings.TrimRight(b.String(), "\n")))
}

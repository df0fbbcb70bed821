package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/openmined/gamebox/internal/client/transfer"
)

const maxRecentErrors = 5

type transferMsg struct{ ev transfer.Event }

type workDoneMsg struct{ err error }

// progressModel renders transfer events of one or more batches.
type progressModel struct {
	title   string
	cancel  context.CancelFunc
	bar     progress.Model
	spinner spinner.Model

	batches    int
	total      int
	totalBytes int64
	done       int
	skipped    int
	failed     int
	bytes      int64
	current    string
	errors     []string

	finished bool
	err      error
	started  time.Time
}

func newProgressModel(title string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cyan

	return progressModel{
		title:   title,
		cancel:  cancel,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		spinner: s,
		started: time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-24, 10), 64)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case transferMsg:
		m = m.apply(msg.ev)
		cmd := m.bar.SetPercent(m.percent())
		return m, cmd

	case workDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) apply(ev transfer.Event) progressModel {
	switch ev := ev.(type) {
	case transfer.BatchStarted:
		m.batches++
		m.total += ev.Count
		m.totalBytes += ev.Bytes
	case transfer.ItemStarted:
		m.current = ev.Job.RelPath
	case transfer.ItemFinished:
		switch {
		case ev.Err != nil:
			m.failed++
			m.errors = append(m.errors, fmt.Sprintf("%s: %v", path.Base(ev.Job.RelPath), ev.Err))
			if len(m.errors) > maxRecentErrors {
				m.errors = m.errors[1:]
			}
		case ev.Skipped:
			m.skipped++
			m.bytes += ev.Job.Size
		default:
			m.done++
			m.bytes += ev.Bytes
		}
	case transfer.BatchFinished:
		m.current = ""
	}
	return m
}

func (m progressModel) percent() float64 {
	if m.totalBytes > 0 {
		return min(float64(m.bytes)/float64(m.totalBytes), 1)
	}
	if m.total > 0 {
		return float64(m.done+m.skipped+m.failed) / float64(m.total)
	}
	return 0
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	if m.total == 0 && !m.finished {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), "planning...")
	} else {
		b.WriteString(m.bar.View())
		fmt.Fprintf(&b, "  %s / %s\n",
			humanize.IBytes(uint64(m.bytes)), humanize.IBytes(uint64(m.totalBytes)))
		fmt.Fprintf(&b, "%s %d  %s %d  %s %d  %s %d\n",
			gray.Render("files"), m.total,
			green.Render("done"), m.done,
			gray.Render("skipped"), m.skipped,
			red.Render("failed"), m.failed)
	}

	if m.current != "" {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), currentStyle.Render(m.current))
	}
	for _, e := range m.errors {
		b.WriteString(errorStyle.Render("  ✗ " + e))
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("Press 'q' or 'Ctrl+C' to stop."))
		b.WriteString("\n")
	}
	return b.String()
}

// summary is printed once the view is gone.
func (m progressModel) summary() string {
	return fmt.Sprintf("%s %d transferred, %d up to date, %d failed, %s in %s",
		green.Render("✓"), m.done, m.skipped, m.failed,
		humanize.IBytes(uint64(m.bytes)), time.Since(m.started).Round(time.Millisecond))
}

// runWithProgress runs work with a live progress view when stdout is a
// terminal. Otherwise work runs without an event channel and the usual log
// lines report progress.
func runWithProgress(ctx context.Context, title string, work func(ctx context.Context, events chan<- transfer.Event) error) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return work(ctx, nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prev := stdoutLevel.Level()
	stdoutLevel.Set(slog.LevelError)
	defer stdoutLevel.Set(prev)

	events := make(chan transfer.Event, 256)
	p := tea.NewProgram(newProgressModel(title, cancel), tea.WithContext(ctx))

	go func() {
		for ev := range events {
			p.Send(transferMsg{ev: ev})
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx, events)
		close(events)
		errCh <- err
		p.Send(workDoneMsg{err: err})
	}()

	final, runErr := p.Run()
	// the view may quit first on Ctrl+C; work stops once ctx is cancelled
	cancel()
	err := <-errCh

	if fm, ok := final.(progressModel); ok && runErr == nil {
		fmt.Println(fm.summary())
	}
	return err
}

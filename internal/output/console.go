package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	statusCompleted = color.New(color.FgGreen)
	statusFailed    = color.New(color.FgRed)
	statusRunning   = color.New(color.FgCyan)
)

// ConsoleSink writes events to a terminal, either as colored text lines or
// as NDJSON (one JSON object per line).
type ConsoleSink struct {
	writer io.Writer
	format string // "text" or "ndjson"
	mu     sync.Mutex
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stderr
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{writer: w, format: format}
}

func (s *ConsoleSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "ndjson" {
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}

	var err error
	switch e.Type {
	case "run.started":
		_, err = fmt.Fprintf(s.writer, "run %s started (%d repos)\n", e.Run, e.Repos)
	case "repo.started":
		_, err = fmt.Fprintf(s.writer, "  %s: started\n", e.Repo)
	case "repo.phase":
		_, err = fmt.Fprintf(s.writer, "  %s: %s (%d%%)\n", e.Repo, e.Message, e.Progress)
	case "repo.finished":
		if e.Error != "" {
			_, err = fmt.Fprintf(s.writer, "  %s: %s: %s\n", e.Repo, s.colored(e.Status), e.Error)
		} else {
			_, err = fmt.Fprintf(s.writer, "  %s: %s\n", e.Repo, s.colored(e.Status))
		}
	case "run.finished":
		_, err = fmt.Fprintf(s.writer, "run %s %s\n", e.Run, s.colored(e.Status))
	default:
		return nil
	}
	return err
}

func (s *ConsoleSink) colored(status string) string {
	switch status {
	case "completed":
		return statusCompleted.Sprint(status)
	case "failed":
		return statusFailed.Sprint(status)
	case "running":
		return statusRunning.Sprint(status)
	default:
		return status
	}
}

func (s *ConsoleSink) Close() error {
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}

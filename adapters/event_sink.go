package adapters

import (
	"io"
	"mqtt-console/application"
	"sync"

	"github.com/rs/zerolog"
)

// WriterSink appends each event line to an io.Writer, typically the terminal.
type WriterSink struct {
	out io.Writer
	mu  sync.Mutex

	log zerolog.Logger
}

func NewWriterSink(out io.Writer, log zerolog.Logger) *WriterSink {
	return &WriterSink{out: out, log: log}
}

func (s *WriterSink) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.out, line+"\n"); err != nil {
		s.log.Error().Err(err).Msg("failed to write event")
	}
}

type MemorySink struct {
	lines []string
	mu    sync.Mutex
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, line)
}

func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.lines...)
}

// TeeSink fans one event out to several sinks in order.
type TeeSink []application.EventSink

func (t TeeSink) Append(line string) {
	for _, s := range t {
		s.Append(line)
	}
}

var (
	_ application.EventSink = &WriterSink{}
	_ application.EventSink = &MemorySink{}
	_ application.EventSink = TeeSink{}
)

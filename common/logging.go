// Package common provides the logging infrastructure shared by every
// Flinch package. Error-level entries are routed to a log file under
// the engine's configured log directory; everything else goes to
// stderr, so an operator tailing the process sees operational noise
// while a postmortem can grep the file for failures.
package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus-formatted entries between stderr and a
// log file based on their level, opening the file lazily on first
// error so a quiet process never creates one.
type OutputSplitter struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	opened  bool
	openErr error
}

// NewOutputSplitter returns a splitter that writes error-level entries
// to a timestamped file under dir, created on first use.
func NewOutputSplitter(dir string) *OutputSplitter {
	return &OutputSplitter{dir: dir}
}

// Write implements io.Writer, routing by the "level=error" marker that
// logrus's TextFormatter stamps on every error-level entry.
func (s *OutputSplitter) Write(p []byte) (n int, err error) {
	if !bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}

	f, ferr := s.errorFile()
	if ferr != nil {
		return os.Stderr.Write(p)
	}
	return f.Write(p)
}

func (s *OutputSplitter) errorFile() (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return s.file, s.openErr
	}
	s.opened = true

	dir := s.dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.openErr = err
		return nil, err
	}

	name := fmt.Sprintf("flinch%s.log", time.Now().Format("20060102_150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		s.openErr = err
		return nil, err
	}
	s.file = f
	return f, nil
}

// Close releases the underlying log file, if one was opened.
func (s *OutputSplitter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Logger is the package-wide logger. Before Init is called, error
// output goes to stderr like everything else.
var Logger = logrus.New()

func init() {
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	Logger.SetOutput(os.Stderr)
}

// Init points Logger's error output at dir and returns the splitter so
// callers can Close it during shutdown.
func Init(dir string) *OutputSplitter {
	splitter := NewOutputSplitter(dir)
	Logger.SetOutput(splitter)
	return splitter
}

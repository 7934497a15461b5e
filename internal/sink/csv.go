package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/torosent/crankbench/internal/measure"
)

// Path returns the series file of a test.
func Path(root, category, name string) string {
	return filepath.Join(root, category, name+".csv")
}

// CSVSink writes step rows of one test to a CSV file. It is safe for
// concurrent use, though a single engine writes to it sequentially.
type CSVSink struct {
	path string

	mu     sync.Mutex
	lock   *flock.Flock
	file   *os.File
	w      *bufio.Writer
	header []string
	rows   int64
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// NewCSV returns a sink for <root>/<category>/<name>.csv. Nothing touches
// the filesystem until the first row is written.
func NewCSV(root, category, name string) *CSVSink {
	return &CSVSink{path: Path(root, category, name)}
}

// Path returns the destination file.
func (s *CSVSink) Path() string { return s.path }

// Header returns the fixed header, or nil before the first write.
func (s *CSVSink) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}

// Rows returns the number of data rows written.
func (s *CSVSink) Rows() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Begin fixes the header from prototype and writes it. It is a no-op when
// the header is already fixed.
func (s *CSVSink) Begin(prototype *measure.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.ensureHeader(prototype)
	return err
}

// Emit appends row. The first call without a prior Begin fixes the header
// from row's keys. Missing header keys are written as empty fields and keys
// outside the header are dropped.
func (s *CSVSink) Emit(row *measure.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.ensureHeader(row)
	if err != nil {
		return err
	}
	fields := make([]string, len(header))
	for i, key := range header {
		if v, ok := row.Get(key); ok {
			fields[i] = measure.Format(v)
		}
	}
	if err := s.writeLine(fields); err != nil {
		return err
	}
	s.rows++
	return nil
}

// Flush writes buffered rows to the file.
func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return &Error{Op: "flush", Path: s.path, Err: err}
	}
	return nil
}

// Close flushes and closes the file and releases the lock. Only the first
// call has an effect; later calls return the first result.
func (s *CSVSink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		var errs []error
		if s.w != nil {
			if err := s.w.Flush(); err != nil {
				errs = append(errs, &Error{Op: "flush", Path: s.path, Err: err})
			}
		}
		if s.file != nil {
			if err := s.file.Close(); err != nil {
				errs = append(errs, &Error{Op: "close", Path: s.path, Err: err})
			}
		}
		if s.lock != nil {
			if err := s.lock.Unlock(); err != nil {
				errs = append(errs, &Error{Op: "unlock", Path: s.lock.Path(), Err: err})
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *CSVSink) ensureHeader(row *measure.Row) ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.header != nil {
		return s.header, nil
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	header := row.Keys()
	if header == nil {
		header = []string{}
	}
	if err := s.writeLine(header); err != nil {
		return nil, err
	}
	s.header = header
	return header, nil
}

func (s *CSVSink) open() error {
	if s.file != nil {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: "mkdir", Path: dir, Err: err}
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return &Error{Op: "lock", Path: lock.Path(), Err: err}
	}
	if !locked {
		return &Error{Op: "lock", Path: lock.Path(), Err: ErrSinkLocked}
	}

	f, err := os.Create(s.path)
	if err != nil {
		_ = lock.Unlock()
		return &Error{Op: "create", Path: s.path, Err: err}
	}
	s.lock = lock
	s.file = f
	s.w = bufio.NewWriter(f)
	return nil
}

func (s *CSVSink) writeLine(fields []string) error {
	if _, err := s.w.WriteString(EncodeLine(fields)); err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EncodeLine renders fields as one newline-terminated CSV line.
func EncodeLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		escaper.WriteString(&b, f)
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	return b.String()
}

// ParseLine reverses EncodeLine. A trailing newline is optional.
func ParseLine(line string) ([]string, error) {
	line = strings.TrimSuffix(line, "\n")
	if line == "" {
		return nil, nil
	}

	var (
		fields []string
		b      strings.Builder
	)
	i := 0
	for {
		if i >= len(line) || line[i] != '"' {
			return nil, fmt.Errorf("column %d: expected opening quote", i)
		}
		i++
		b.Reset()
		for {
			if i >= len(line) {
				return nil, errors.New("unterminated field")
			}
			c := line[i]
			if c == '\\' {
				if i+1 >= len(line) {
					return nil, errors.New("dangling escape")
				}
				b.WriteByte(line[i+1])
				i += 2
				continue
			}
			if c == '"' {
				i++
				break
			}
			b.WriteByte(c)
			i++
		}
		fields = append(fields, b.String())
		if i == len(line) {
			return fields, nil
		}
		if line[i] != ',' {
			return nil, fmt.Errorf("column %d: expected comma", i)
		}
		i++
	}
}

// Package scanner locates timeline record boundaries inside a byte range of
// a subject log file without loading the whole file into memory. A record is
// owned by the partition its opening tag falls in: a record may extend past
// the partition's nominal end and is still read to completion, but a record
// opening at or after the end belongs to the next partition.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

const (
	openTagPrefix = "<TL"
	closeTag      = "</TL>"
)

var (
	// ErrOpenFile is returned when the underlying file cannot be opened
	ErrOpenFile = errors.New("failed to open timeline file")
	// ErrStopScan can be returned by a Scan callback to halt the scan early
	ErrStopScan = errors.New("scan stopped by caller")
)

// Span is the byte range of one record: Start is the offset of its opening
// tag, Stop the offset just past its closing tag line.
type Span struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
}

// Record is one decoded timeline record plus its byte range.
type Record struct {
	Text  string
	Start int64
	Stop  int64
}

// Scanner reads records out of the byte range [start, stop) of a file. A
// stop of zero or less means "to end of file". Each scanner owns its own
// file handle; nothing is shared between partitions.
type Scanner struct {
	log   logrus.FieldLogger
	path  string
	start int64
	stop  int64
}

// New creates a scanner over [start, stop) of the file at path.
func New(log logrus.FieldLogger, path string, start, stop int64) *Scanner {
	return &Scanner{
		log:   log.WithFields(logrus.Fields{"component": "scanner", "file": path}),
		path:  path,
		start: start,
		stop:  stop,
	}
}

// Spans returns the byte ranges of every record whose opening tag falls
// inside the scanner's range. This is the cheap offsets-only mode used to
// build partition work assignments; record text is not retained.
func (s *Scanner) Spans(ctx context.Context) ([]Span, error) {
	var spans []Span

	err := s.walk(ctx, false, func(rec *Record) error {
		spans = append(spans, Span{Start: rec.Start, Stop: rec.Stop})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return spans, nil
}

// Scan invokes fn with the decoded text of every record whose opening tag
// falls inside the scanner's range. fn may return ErrStopScan to halt early
// without error. Cancellation is only observed between records: a record is
// always read to completion once claimed.
func (s *Scanner) Scan(ctx context.Context, fn func(rec *Record) error) error {
	return s.walk(ctx, true, fn)
}

func (s *Scanner) walk(ctx context.Context, collectText bool, fn func(rec *Record) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	if s.start > 0 {
		// Seek one byte back to learn whether start lands on a line
		// boundary. If it does not, the partial first line belongs to the
		// previous partition and is discarded.
		if _, err := f.Seek(s.start-1, io.SeekStart); err != nil {
			return fmt.Errorf("%w: seek to %d: %v", ErrOpenFile, s.start-1, err)
		}
	}

	r := bufio.NewReaderSize(f, 1<<20)
	offset := s.start

	if s.start > 0 {
		prev, err := r.ReadByte()
		if err != nil {
			return nil //nolint:nilerr // start at or past EOF: empty partition
		}

		if prev != '\n' {
			partial, err := r.ReadString('\n')
			offset += int64(len(partial))

			if err != nil {
				return nil //nolint:nilerr // partition ends inside the final line
			}
		}
	}

	var (
		inRecord    bool
		recordStart int64
		text        strings.Builder
	)

	emit := func(stop int64) error {
		rec := &Record{Start: recordStart, Stop: stop}
		if collectText {
			rec.Text = text.String()
		}

		text.Reset()

		inRecord = false

		return fn(rec)
	}

	for {
		if !inRecord {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, readErr := r.ReadString('\n')
		lineStart := offset
		offset += int64(len(line))

		if line != "" {
			trimmed := strings.TrimRight(line, "\r\n")

			switch {
			case !utf8.ValidString(trimmed):
				// A single corrupt line is a data-quality issue, never a
				// scan abort. Bytes are still counted toward offsets.
				s.log.WithField("offset", lineStart).Warn("Skipping undecodable line")

			case !inRecord && strings.HasPrefix(trimmed, openTagPrefix) && !strings.HasPrefix(trimmed, closeTag):
				if s.stop > 0 && lineStart >= s.stop {
					// Opening tag past the partition end: the record belongs
					// to the next partition. Stop without error.
					return nil
				}

				inRecord = true
				recordStart = lineStart

				if collectText {
					text.WriteString(trimmed)
					text.WriteByte('\n')
				}

			case inRecord:
				if collectText {
					text.WriteString(trimmed)
					text.WriteByte('\n')
				}

				if strings.TrimSpace(trimmed) == closeTag {
					if err := emit(offset); err != nil {
						if errors.Is(err, ErrStopScan) {
							return nil
						}

						return err
					}
				}
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				s.log.WithError(readErr).WithField("offset", offset).Warn("Read error, stopping scan")
			}

			break
		}

		if !inRecord && s.stop > 0 && offset >= s.stop {
			return nil
		}
	}

	if inRecord {
		// Unterminated record at end of file: hand it to the caller anyway;
		// the compiler reports it unreadable and the caller skips it.
		s.log.WithField("start", recordStart).Warn("Record not closed before end of file")

		if err := emit(offset); err != nil && !errors.Is(err, ErrStopScan) {
			return err
		}
	}

	return nil
}

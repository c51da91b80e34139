// Package streamline turns a child process's raw stdout/stderr byte
// stream into a sequence of LogLine values (§4.E).
package streamline

import (
	"bufio"
	"io"
	"time"

	"github.com/captjt/devproc/internal/domain/process"
)

// defaultBufSize matches bufio.Scanner's default maximum token size and is
// large enough for the overwhelming majority of log lines; for longer ones
// ReadBytes assembles the line from several fills of this fixed buffer.
const defaultBufSize = 64 * 1024

// LineFunc receives each decoded LogLine as it becomes available.
type LineFunc func(process.LogLine)

// Read consumes r until EOF, splitting on '\n' and invoking emit for each
// line. bufio.Reader.ReadBytes accumulates underlying Read() calls
// internally, so a multi-byte UTF-8 sequence split across two chunks of
// the same line is already reassembled before Read ever sees it; callers
// only need to handle the case this function handles directly: a final,
// non-empty, newline-less fragment at EOF, which is emitted as a last
// line. Read blocks until r is exhausted or returns a non-EOF error; it is
// not restartable.
func Read(r io.Reader, service string, stream process.StreamKind, emit LineFunc) error {
	br := bufio.NewReaderSize(r, defaultBufSize)

	for {
		chunk, err := br.ReadBytes('\n')
		if len(chunk) > 0 {
			text := chunk
			if text[len(text)-1] == '\n' {
				text = text[:len(text)-1]
			}
			if len(text) > 0 || err == nil {
				emit(process.LogLine{
					Service:   service,
					Stream:    stream,
					Text:      string(text),
					Timestamp: time.Now(),
				})
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

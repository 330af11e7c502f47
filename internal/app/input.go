package app

import (
	"bufio"
	"io"
	"strings"
)

type lineResult struct {
	line string
	err  error
}

// lineReader reads stdin one line at a time with at most one read outstanding,
// so a select can wait on Enter alongside other events.
type lineReader struct {
	r        *bufio.Reader
	inFlight chan lineResult
}

func newLineReader(r io.Reader) *lineReader {
	if r == nil {
		r = strings.NewReader("")
	}
	return &lineReader{r: bufio.NewReader(r)}
}

// next returns the channel of the outstanding read, starting one if needed.
func (l *lineReader) next() <-chan lineResult {
	if l.inFlight == nil {
		ch := make(chan lineResult, 1)
		l.inFlight = ch
		go func() {
			line, err := l.r.ReadString('\n')
			ch <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
		}()
	}
	return l.inFlight
}

// consume marks the outstanding read as delivered.
func (l *lineReader) consume() {
	l.inFlight = nil
}

// pending reports whether a read is still blocked on input.
func (l *lineReader) pending() bool {
	return l.inFlight != nil
}

package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrLineTooLong reports a line over the size limit. The rest of the line
// has been discarded and the next read starts on the following line.
var ErrLineTooLong = errors.New("sse: line too long")

// LineReader splits a body into lines without the trailing "\n" or "\r\n".
// Unlike bufio.Scanner it recovers from an oversized line.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader reads lines of at most maxLine bytes. maxLine <= 0 uses
// DefaultMaxLineSize.
func NewLineReader(r io.Reader, maxLine int) *LineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	return &LineReader{r: bufio.NewReader(r), max: maxLine}
}

// ReadLine returns the next line. A last line without a newline is returned
// before io.EOF.
func (l *LineReader) ReadLine() (string, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := l.r.ReadSlice('\n')
		if !tooLong {
			line = append(line, frag...)
			if len(bytes.TrimRight(line, "\r\n")) > l.max {
				tooLong, line = true, nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && !errors.Is(err, io.EOF):
			return "", err
		case tooLong:
			return "", ErrLineTooLong
		case err == nil || len(line) > 0:
			return string(bytes.TrimSuffix(bytes.TrimSuffix(line, []byte("\n")), []byte("\r"))), nil
		default:
			return "", io.EOF
		}
	}
}

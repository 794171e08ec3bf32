package extract

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxLineBytes caps a single input line. Longer lines are cut.
const DefaultMaxLineBytes = 64 * 1024

// DecodeReader wraps r with a best-effort UTF-8 decoder: a leading byte
// order mark is removed and invalid byte sequences become U+FFFD.
func DecodeReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
}

// lineReader yields newline-delimited lines without holding more than one
// line in memory.
type lineReader struct {
	r       *bufio.Reader
	maxLine int
	buf     []byte
}

func newLineReader(r io.Reader, maxLine int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), maxLine: maxLine}
}

// next returns the next line. ok is false at end of input.
func (lr *lineReader) next() (line string, ok bool, err error) {
	lr.buf = lr.buf[:0]
	read := 0
	for {
		frag, err := lr.r.ReadSlice('\n')
		read += len(frag)
		if room := lr.maxLine - len(lr.buf); room > 0 {
			if len(frag) > room {
				frag = frag[:room]
			}
			lr.buf = append(lr.buf, frag...)
		}

		switch err {
		case nil:
			return lr.text(), true, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if read == 0 {
				return "", false, nil
			}
			return lr.text(), true, nil
		default:
			return "", false, fmt.Errorf("reading console input: %w", err)
		}
	}
}

func (lr *lineReader) text() string {
	s := strings.TrimRight(string(lr.buf), "\r\n")
	return truncateBytes(s, lr.maxLine)
}

// ring keeps the last cap lines seen.
type ring struct {
	lines []string
	next  int
	full  bool
}

func newRing(capacity int) *ring {
	return &ring{lines: make([]string, capacity)}
}

func (r *ring) push(line string) {
	if len(r.lines) == 0 {
		return
	}
	r.lines[r.next] = line
	r.next++
	if r.next == len(r.lines) {
		r.next = 0
		r.full = true
	}
}

// last returns up to n of the most recent lines, oldest first.
func (r *ring) last(n int) []string {
	size := r.next
	if r.full {
		size = len(r.lines)
	}
	if n > size {
		n = size
	}
	out := make([]string, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	return out
}

// TruncateTail returns the last maxLines lines of text, prefixed with a
// notice when lines were cut.
func TruncateTail(text string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= maxLines {
		return text
	}
	kept := lines[len(lines)-maxLines:]
	return fmt.Sprintf("[Log truncated: showing last %d of %d lines]\n", maxLines, len(lines)) +
		strings.Join(kept, "\n")
}

package document

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize is the longest line ScanLines accepts.
const MaxLineSize = 1024 * 1024

// ScanLines calls fn for every non-blank line of r. Line numbers start at
// one and count blank lines. The slice passed to fn is only valid for the
// duration of the call.
func ScanLines(r io.Reader, fn func(lineNum int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(lineNum, line); err != nil {
			return err
		}
	}

	return scanner.Err()
}

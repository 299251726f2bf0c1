// Package excerpt reads bounded prefixes of files for prompting and trims text for display.
package excerpt

import (
	"bufio"
	"errors"
	"io"
	"os"
	"unicode/utf8"
)

// Ellipsis marks truncated display text.
const Ellipsis = "..."

// ErrNotText is returned when the prefix is not valid UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// File reads at most maxChars runes from the start of the file at path.
func File(path string, maxChars int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Head(f, maxChars)
}

// Head reads at most maxChars runes from r. Only the bytes needed are consumed,
// so arbitrarily large inputs cost at most maxChars*utf8.UTFMax bytes.
func Head(r io.Reader, maxChars int) (string, error) {
	if maxChars <= 0 {
		return "", nil
	}
	br := bufio.NewReader(io.LimitReader(r, int64(maxChars)*utf8.UTFMax))
	buf := make([]byte, 0, maxChars)
	for n := 0; n < maxChars; n++ {
		ch, size, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if ch == utf8.RuneError && size == 1 {
			return "", ErrNotText
		}
		buf = utf8.AppendRune(buf, ch)
	}
	return string(buf), nil
}

// Truncate shortens s to at most n runes, appending Ellipsis when anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if n == 0 {
			cut = i
			break
		}
		n--
	}
	return s[:cut] + Ellipsis
}

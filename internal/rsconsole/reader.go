// Package rsconsole contains line-reading machinery for interactive
// RiveScript sessions: a plain buffered reader for piped/non-tty input, and
// a GNU Readline-backed reader (via github.com/chzyer/readline) for
// terminal sessions, so that history and line editing work the way users
// expect. Both are adapted from the teacher engine's internal/input
// package, which draws exactly the same DirectCommandReader/
// InteractiveCommandReader split for the same reason: readline should only
// be engaged when actually talking to a tty.
package rsconsole

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Reader is anything that can produce one user input line at a time.
type Reader interface {
	ReadLine() (string, error)
	Close() error
}

// DirectReader reads lines from any io.Reader with no escape-sequence
// handling; use it for piped input or when readline isn't appropriate.
type DirectReader struct {
	r *bufio.Reader
}

// NewDirectReader wraps r in a DirectReader.
func NewDirectReader(r io.Reader) *DirectReader {
	return &DirectReader{r: bufio.NewReader(r)}
}

// ReadLine reads the next line with surrounding whitespace trimmed; a blank
// line comes back as an empty string. At end of input it returns an empty
// string and io.EOF.
func (d *DirectReader) ReadLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Close is a no-op; DirectReader owns no resources of its own.
func (d *DirectReader) Close() error { return nil }

// InteractiveReader reads lines from stdin via GNU Readline, giving history
// and basic line editing. Construct with NewInteractiveReader; callers must
// Close it when done.
type InteractiveReader struct {
	rl     *readline.Instance
	prompt string
}

// NewInteractiveReader starts a readline session with the given prompt.
func NewInteractiveReader(prompt string) (*InteractiveReader, error) {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("rsconsole: create readline config: %w", err)
	}
	return &InteractiveReader{rl: rl, prompt: prompt}, nil
}

// ReadLine reads the next line of input from the terminal.
func (i *InteractiveReader) ReadLine() (string, error) {
	line, err := i.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// SetPrompt changes the prompt shown before the next read.
func (i *InteractiveReader) SetPrompt(p string) {
	i.prompt = p
	i.rl.SetPrompt(p)
}

// Close releases the underlying terminal resources.
func (i *InteractiveReader) Close() error {
	return i.rl.Close()
}

// Package prompt provides user interaction utilities for CLI tools.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrInterrupted is returned by reads cancelled through the interrupt channel.
var ErrInterrupted = errors.New("interrupted")

// IsAbort reports whether err means the user wants to leave the current screen.
func IsAbort(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, io.EOF)
}

type readResult struct {
	line string
	err  error
}

// Prompter handles user interaction for configuration.
type Prompter struct {
	reader     *bufio.Reader
	writer     io.Writer
	interrupts <-chan os.Signal
	pending    chan readResult
	passwordFD int
}

// New creates a prompter with the given input/output streams.
func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		reader:     bufio.NewReader(r),
		writer:     w,
		passwordFD: -1,
	}
}

// SetInterrupts makes every read return ErrInterrupted when a signal arrives on ch.
func (p *Prompter) SetInterrupts(ch <-chan os.Signal) {
	p.interrupts = ch
}

// SetTerminal enables hidden password input on the terminal behind fd.
func (p *Prompter) SetTerminal(fd int) {
	if term.IsTerminal(fd) {
		p.passwordFD = fd
	}
}

// Writer returns the output stream.
func (p *Prompter) Writer() io.Writer {
	return p.writer
}

// Choice represents a menu option.
type Choice struct {
	ID      string
	Display string
}

// Select displays options and returns the selected ID. Empty or invalid input
// selects the default.
func (p *Prompter) Select(prompt string, choices []Choice, defaultIdx int) (string, error) {
	for i, c := range choices {
		mark := ""
		if i == defaultIdx {
			mark = " (default)"
		}
		fmt.Fprintf(p.writer, "    %d. %s%s\n", i+1, c.Display, mark)
	}

	fmt.Fprintf(p.writer, "%s [1-%d, default=%d]: ", prompt, len(choices), defaultIdx+1)

	input, err := p.readLine()
	if err != nil {
		return "", err
	}

	if input == "" {
		return choices[defaultIdx].ID, nil
	}

	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > len(choices) {
		return choices[defaultIdx].ID, nil
	}

	return choices[idx-1].ID, nil
}

// Menu shows a titled list and asks until a valid entry is chosen.
func (p *Prompter) Menu(title string, choices []Choice) (string, error) {
	p.Section(title)
	for i, c := range choices {
		fmt.Fprintf(p.writer, "    %d. %s\n", i+1, c.Display)
	}
	for {
		fmt.Fprintf(p.writer, "Select option [1-%d]: ", len(choices))
		input, err := p.readLine()
		if err != nil {
			return "", err
		}
		idx, err := strconv.Atoi(input)
		if err == nil && idx >= 1 && idx <= len(choices) {
			return choices[idx-1].ID, nil
		}
		fmt.Fprintf(p.writer, "Invalid choice %q\n", input)
	}
}

// Ask reads a line, returning def for empty input.
func (p *Prompter) Ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.writer, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(p.writer, "%s: ", prompt)
	}
	input, err := p.readLine()
	if err != nil {
		return "", err
	}
	if input == "" {
		return def, nil
	}
	return input, nil
}

// AskInt reads an integer, returning def for empty input and asking again on
// anything that is not a number.
func (p *Prompter) AskInt(prompt string, def int) (int, error) {
	for {
		fmt.Fprintf(p.writer, "%s [%d]: ", prompt, def)
		input, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if input == "" {
			return def, nil
		}
		v, err := strconv.Atoi(input)
		if err == nil {
			return v, nil
		}
		fmt.Fprintln(p.writer, "Please enter a number")
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Fprintf(p.writer, "%s (%s): ", prompt, hint)
	input, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(input) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return def, nil
}

// Password reads a line without echo when the input is a terminal.
func (p *Prompter) Password(prompt string) (string, error) {
	fmt.Fprintf(p.writer, "%s: ", prompt)
	if p.passwordFD < 0 || p.pending != nil {
		return p.readLine()
	}
	b, err := term.ReadPassword(p.passwordFD)
	fmt.Fprintln(p.writer)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Section prints a section header.
func (p *Prompter) Section(title string) {
	fmt.Fprintf(p.writer, "\n[%s]\n", title)
}

// Print writes a formatted message.
func (p *Prompter) Print(format string, args ...any) {
	fmt.Fprintf(p.writer, format, args...)
}

// Println writes a message with newline.
func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.writer, args...)
}

// readLine returns the next trimmed line. A final line without newline is returned
// as is; io.EOF is only reported once nothing is left.
func (p *Prompter) readLine() (string, error) {
	if p.interrupts == nil {
		return trimResult(p.reader.ReadString('\n'))
	}

	// A read abandoned by an interrupt stays pending and serves the next call.
	if p.pending == nil {
		c := make(chan readResult, 1)
		p.pending = c
		go func() {
			line, err := p.reader.ReadString('\n')
			c <- readResult{line: line, err: err}
		}()
	}

	select {
	case r := <-p.pending:
		p.pending = nil
		return trimResult(r.line, r.err)
	case <-p.interrupts:
		fmt.Fprintln(p.writer)
		return "", ErrInterrupted
	}
}

func trimResult(line string, err error) (string, error) {
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"tpa_auth/internal/config"

	"golang.org/x/term"
)

type (
	// LineReader supplies the messages to send. It returns io.EOF once the
	// input is over.
	LineReader interface {
		ReadLine() (string, error)
	}

	// Console is a LineReader that can also show the outcome of each message.
	Console interface {
		LineReader
		Notify(text string)
		Close() error
	}

	// PlainConsole reads lines from any reader and prints notices to a writer.
	PlainConsole struct {
		scanner *bufio.Scanner
		out     io.Writer
	}
)

func NewPlainConsole(in io.Reader, out io.Writer) *PlainConsole {
	return &PlainConsole{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (c *PlainConsole) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

func (c *PlainConsole) Notify(text string) {
	fmt.Fprintln(c.out, text)
}

func (c *PlainConsole) Close() error {
	return nil
}

// NewConsole picks the console for ui. UIAuto uses the terminal UI only when
// stdin is a terminal.
func NewConsole(ui string) (Console, error) {
	switch ui {
	case config.UIPlain:
		return NewPlainConsole(os.Stdin, os.Stdout), nil
	case config.UITUI:
		return StartTUI()
	case config.UIAuto:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return StartTUI()
		}
		return NewPlainConsole(os.Stdin, os.Stdout), nil
	default:
		return nil, fmt.Errorf("app: unknown ui %q", ui)
	}
}

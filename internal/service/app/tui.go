package app

import (
	"fmt"
	"io"
	"sync"
	"tpa_auth/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	// TUI is a terminal Console: a scrolling transcript above an input field.
	// Enter submits a line, an empty line or Escape ends the input.
	TUI struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		lines    chan string
		done     chan struct{}
		stopOnce sync.Once
	}
)

func newTUI() *TUI {
	t := &TUI{
		app:   tview.NewApplication(),
		lines: make(chan string),
		done:  make(chan struct{}),
	}

	t.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	t.chatbox.SetBorder(true).SetTitle(" Session ")

	t.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	t.input.SetBorder(true).SetTitle(" New Message (Esc to quit) ")

	t.input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			t.enter(t.input.GetText())
		case tcell.KeyEscape:
			t.stop()
		}
	})

	return t
}

// StartTUI takes over the terminal until Close.
func StartTUI() (*TUI, error) {
	t := newTUI()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.chatbox, 0, 1, false).
		AddItem(t.input, 3, 0, true)
	t.app.SetRoot(layout, true).SetFocus(t.input)

	go func() {
		if err := t.app.Run(); err != nil {
			log.Error("terminal UI failed", zap.Error(err))
		}
		t.stop()
	}()
	return t, nil
}

// enter handles a line typed in the input field. An empty line ends the
// input.
func (t *TUI) enter(text string) {
	if text == "" {
		t.stop()
		return
	}
	t.input.SetText("")
	fmt.Fprintf(t.chatbox, "[yellow]You:[-] %s\n", tview.Escape(text))
	go t.submit(text)
}

func (t *TUI) submit(text string) {
	select {
	case t.lines <- text:
	case <-t.done:
	}
}

func (t *TUI) stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *TUI) ReadLine() (string, error) {
	select {
	case line := <-t.lines:
		return line, nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *TUI) Notify(text string) {
	t.app.QueueUpdateDraw(func() {
		fmt.Fprintf(t.chatbox, "[green]%s[-]\n", tview.Escape(text))
		t.chatbox.ScrollToEnd()
	})
}

func (t *TUI) Close() error {
	t.stop()
	t.app.Stop()
	return nil
}

// Package ui is the terminal browser over the elements of a canvas.
package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gubarz/dungeon/internal/store"
)

// getTTY returns file handles for TUI input/output.
// Uses /dev/tty when stdout is captured so the chosen key can be piped.
func getTTY() (in *os.File, out *os.File, cleanup func()) {
	var closers []func()

	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		out, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			out = os.Stderr
		} else {
			closers = append(closers, func() { out.Close() })
		}

		in, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
		if err != nil {
			in = os.Stdin
		} else {
			closers = append(closers, func() { in.Close() })
		}

		// Tell lipgloss to use the TTY for color detection
		lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(out))

		return in, out, func() {
			for _, c := range closers {
				c()
			}
		}
	}

	return os.Stdin, os.Stdout, func() {}
}

// Run browses the store's document until the user quits. Reloads of the
// file show up while browsing. The key of the chosen element, if any, is
// written to result.
func Run(st *store.Store, initialQuery string, result io.Writer) error {
	doc := st.Current()
	if len(doc.Elements) == 0 {
		return fmt.Errorf("no elements in %s", st.Path())
	}

	m := newMainModel(st.Path(), doc)
	if initialQuery != "" {
		m.textInput.SetValue(initialQuery)
		m.filterElements()
	}

	ttyIn, ttyOut, cleanup := getTTY()
	defer cleanup()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(ttyOut), tea.WithInput(ttyIn))
	st.OnChange(func(ev store.Event) {
		p.Send(documentMsg{doc: ev.Doc})
	})

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	if final := finalModel.(mainModel); final.selected != nil {
		fmt.Fprintln(result, final.selected.key)
	}
	return nil
}

package turnip

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/term"
)

// pagerFits reports whether lines can be printed directly instead of paged.
func pagerFits(isTTY bool, height, lines int) bool {
	// Two rows go to the border
	return !isTTY || (height > 0 && lines <= height-2)
}

// RunPager shows lines in a scrollable TUI when stdout is a TTY and the
// content does not fit the screen. Otherwise it prints them to out.
func RunPager(out io.Writer, title string, lines []string) error {
	fd := int(os.Stdout.Fd())
	isTTY := out == os.Stdout && term.IsTerminal(fd)
	height := 0
	if isTTY {
		if _, h, err := term.GetSize(fd); err == nil {
			height = h
		}
	}
	if pagerFits(isTTY, height, len(lines)) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		return nil
	}

	app := tview.NewApplication()

	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	textView.SetBorder(true).SetTitle(" " + title + " ")

	// meson and ninja emit ANSI colors under CLICOLOR_FORCE
	ansiWriter := tview.ANSIWriter(textView)
	fmt.Fprint(ansiWriter, strings.Join(lines, "\n"))
	textView.ScrollToEnd()

	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]Use ↑/↓, PgUp/PgDn, Home/End to scroll. Press 'q' or 'Esc' to quit.[white]")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, true).
		AddItem(footer, 1, 0, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyCtrlQ:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				app.Stop()
				return nil
			}
		}
		return event
	})

	if err := app.SetRoot(flex, true).SetFocus(textView).Run(); err != nil {
		return fmt.Errorf("pager execution failed: %w", err)
	}
	return nil
}

// logPath maps a log name to its file in the work directory.
func logPath(p Paths, name string) (string, error) {
	switch name {
	case "", "ninja":
		return p.NinjaLog, nil
	case "meson":
		return p.MesonLog, nil
	default:
		return "", fmt.Errorf("unknown log %q: expected meson or ninja", name)
	}
}

// showLog pages the requested build log.
func showLog(out io.Writer, p Paths, name string) error {
	path, err := logPath(p, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no %s log at %s; run a build first", filepath.Base(path), path)
		}
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return RunPager(out, filepath.Base(path), lines)
}

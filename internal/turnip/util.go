package turnip

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// color-compatible printer interface (works with *color.Theme and *color.Style)
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// cPrintln prints a line with the given style or falls back to fmt.Println when nil
func cPrintln(p colorPrinter, a ...any) {
	if p == nil {
		fmt.Println(a...)
		return
	}
	p.Println(a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Printf(format, args...)
	}
}

type colorSprinter interface {
	Sprintf(format string, a ...any) string
}

// fstepf writes a "-> message" line to w rendered in the given style, without a trailing newline.
func fstepf(w io.Writer, p colorSprinter, format string, a ...any) {
	fmt.Fprint(w, colArrow.Sprint("-> "), p.Sprintf(format, a...))
}

// step prints a "-> message" progress line.
func step(format string, a ...any) {
	colArrow.Print("-> ")
	colSuccess.Printf(format+"\n", a...)
}

// lastLines returns up to n trailing lines of the file at path.
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, scanner.Err()
}

// printTail writes the last n lines of a log to w, prefixed with a header.
func printTail(w io.Writer, path string, n int) {
	lines, err := lastLines(path, n)
	if err != nil {
		debugf("could not read %s: %v\n", path, err)
		return
	}
	fmt.Fprintf(w, "--- last %d lines of %s ---\n", len(lines), path)
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}

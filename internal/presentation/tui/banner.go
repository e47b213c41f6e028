package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []string{
	"   ___                              ",
	"  / _ \\ _   _  __ _ _ __ _ __ _   _ ",
	" | | | | | | |/ _` | '__| '__| | | |",
	" | |_| | |_| | (_| | |  | |  | |_| |",
	"  \\__\\_\\\\__,_|\\__,_|_|  |_|   \\__, |",
	"                              |___/ ",
}

var bannerColors = []string{"#38bdf8", "#22d3ee", "#2dd4bf", "#34d399", "#4ade80", "#a3e635"}

// PrintBanner writes the Quarry banner and version to w, colored when w is a color terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, out.String("  query builder "+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or fallback when it cannot be read.
func Width(f *os.File, fallback int) int {
	if !IsInteractive(f) {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

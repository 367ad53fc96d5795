package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
)

// printSuccess writes a green check line.
func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okMark("✓"), fmt.Sprintf(format, args...))
}

// printDetail writes an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", dimText(fmt.Sprintf(format, args...)))
}

// printWarning writes a yellow line.
func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s\n", warnText(fmt.Sprintf(format, args...)))
}

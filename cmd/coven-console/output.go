// ABOUTME: Table, JSON and prompt helpers shared by coven-console commands
// ABOUTME: Secrets are read from the terminal without echo

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/validate"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
)

// printError shows the user-facing message for err.
func printError(err error) {
	var ve *validate.Error
	if errors.As(err, &ve) && ve.Field != "" {
		color.Red("Error: %s (%s)\n", ve.Message, ve.Field)
		return
	}
	msg := client.FriendlyError(err)
	if msg == client.MsgUnknown {
		// Local failures (flags, files) read better verbatim
		msg = err.Error()
	}
	color.Red("Error: %s\n", msg)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// emit prints v as JSON when --json is set and reports whether it did.
func (a *app) emit(v any) bool {
	if !a.jsonOut {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		color.Red("Error: encoding output: %v\n", err)
	}
	return true
}

func yesNo(b bool) string {
	if b {
		return green.Sprint("yes")
	}
	return gray.Sprint("no")
}

func enabled(b bool) string {
	if b {
		return green.Sprint("enabled")
	}
	return gray.Sprint("disabled")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// humanSize formats a byte count.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

var stdin = bufio.NewReader(os.Stdin)

// prompt reads one line from stdin after printing label.
func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a line without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// stdoutIsTerminal reports whether styled output is appropriate.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalWidth returns the stdout width or zero when unknown.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

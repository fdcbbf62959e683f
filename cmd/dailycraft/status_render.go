package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 22

var statusLabels = map[statusKind]string{
	statusInfo:  "INFO",
	statusOK:    "OK",
	statusWarn:  "WARN",
	statusError: "FAIL",
}

var statusColors = map[statusKind]string{
	statusInfo:  ansiBlue,
	statusOK:    ansiGreen,
	statusWarn:  ansiYellow,
	statusError: ansiRed,
}

// statusPrinter writes aligned "label: [KIND] message" lines, coloured only
// when the destination is a terminal.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func newStatusPrinter(out io.Writer) statusPrinter {
	return statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p statusPrinter) line(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.colorize))
}

func (p statusPrinter) header(title string) {
	if p.colorize {
		fmt.Fprintln(p.out, ansiBlue+title+ansiReset)
		return
	}
	fmt.Fprintln(p.out, title)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tag := "[" + statusLabels[kind] + "]"
	if message != "" {
		tag += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if colorize {
		return statusColors[kind] + base + ansiReset
	}
	return base
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

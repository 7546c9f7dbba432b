// Package uiutil provides the CLI's color and progress output, shared by
// every crateindex subcommand. Colors respect NO_COLOR and non-TTY
// output automatically (fatih/color's default behavior).
package uiutil

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// IsTTY reports whether stdout is an interactive terminal; InitColors
// turns colors off when it is not.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// InitColors lets --no-color (or piping into a file) force plain output.
func InitColors(noColor bool) {
	color.NoColor = noColor || !IsTTY()
}

func Success(msg string) { _, _ = Green.Println("✓ " + msg) }
func Warning(msg string) { _, _ = Yellow.Println("⚠ " + msg) }
func Fail(msg string)    { _, _ = Red.Println("✗ " + msg) }
func Info(msg string)    { _, _ = Cyan.Println("ℹ " + msg) }

func Label(text string) string   { return Bold.Sprint(text) }
func DimText(text string) string { return Dim.Sprint(text) }

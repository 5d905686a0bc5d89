package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)

	numPrinter = message.NewPrinter(language.English)
)

func printSuccess(format string, args ...interface{}) {
	successColor.Printf(format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warnColor.Printf(format+"\n", args...)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("marshal output: %v", err)
		return
	}
	fmt.Println(string(data))
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatPlayTime renders seconds of play time as h:mm.
func formatPlayTime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	return fmt.Sprintf("%d:%02d", h, m)
}

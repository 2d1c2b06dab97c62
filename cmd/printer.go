package cmd

import (
	"github.com/fatih/color"
)

// printWarn prints a warning to the screen.
func printWarn(message string) {
	message = "[-] " + message

	color.New(color.FgYellow, color.Bold).Fprintln(color.Error, message)
}

// printError prints an error to the screen.
func printError(err error) {
	message := "[!] " + err.Error()

	color.New(color.FgRed, color.Bold).Fprintln(color.Error, message)
}

// printInfo prints a heading for command output.
func printInfo(message string) {
	color.New(color.FgCyan, color.Bold).Println(message)
}

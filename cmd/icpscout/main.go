package main

import (
	"fmt"
	"os"

	"icpscout/internal/oracle"
	"icpscout/internal/oracle/claude"
	"icpscout/internal/oracle/gemini"
)

func main() {
	oracle.RegisterProvider("claude", claude.Factory)
	oracle.RegisterProvider("gemini", gemini.Factory)

	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Command ledgerctl records and reports expenses from the terminal.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(newApp())); err != nil {
		os.Exit(1)
	}
}

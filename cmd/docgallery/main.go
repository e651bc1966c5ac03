// Command docgallery builds documentation sites from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/dgallion1/docgallery/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

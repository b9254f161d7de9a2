// Command loomctl queries and administers a running loomd instance.
package main

import (
	"fmt"
	"os"

	"github.com/loomhq/loom/pkg/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

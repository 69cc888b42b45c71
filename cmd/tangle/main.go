package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔╦╗┌─┐┌┐┌┌─┐┬  ┌─┐
   ║ ├─┤││││ ┬│  ├┤
   ╩ ┴ ┴┘└┘└─┘┴─┘└─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "tangle",
		Short: "Reactive state engine for terminal applications",
		Long: `Tangle is a fine-grained reactive state engine for Go.

State lives in signals; derived values and effects track their
dependencies automatically and re-run when the state they read
changes. Features include:

  • Signals, memos, and effects with implicit dependency tracking
  • Batched writes with glitch-free propagation
  • Ownership scopes for leak-free teardown
  • Terminal UI driver built on Bubble Tea
  • Devtools server with live event stream and metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", ".", "directory containing tangle.yaml")

	rootCmd.AddCommand(
		demoCmd(),
		devtoolsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Tangle ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

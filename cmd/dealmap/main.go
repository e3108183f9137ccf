// Command dealmap serves the land-deal viewer backend and exposes the
// classification helpers on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dealmap/internal/core/config"
	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

var Version = "dev"

func main() {
	// .env.local is optional
	_ = godotenv.Load(".env.local")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOpts struct {
	styleFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}
	root := &cobra.Command{
		Use:           "dealmap",
		Short:         "Land-deal map backend and classification tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.styleFile, "style", "", "YAML style file (overrides STYLE_FILE)")

	root.AddCommand(
		newServeCmd(opts),
		newFilterCmd(opts),
		newLegendCmd(opts),
		newRowsCmd(opts),
		newCheckCmd(),
		newInvalidateCmd(),
	)
	return root
}

// style resolves the flag, then STYLE_FILE, then the built-in defaults.
func (o *rootOpts) style() (classify.Style, error) {
	path := o.styleFile
	if path == "" {
		path = os.Getenv("STYLE_FILE")
	}
	return config.LoadStyle(path)
}

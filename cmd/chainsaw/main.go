package main

import (
	"context"
	"errors"
	"os"

	"fortio.org/log"

	"github.com/RocketMan234/chainsaw/internal/cliutil"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var exitErr *cliutil.ExitError
		if errors.As(err, &exitErr) {
			log.Errf("%v", exitErr.Err)
			os.Exit(exitErr.Code)
		}
		log.Errf("%v", err)
		os.Exit(cliutil.Code(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chainsaw",
		Short: "Trace which files and packages a source tree pulls in at module-load time",
		Long: `Chainsaw analyzes a TypeScript/JavaScript or Python source tree from an
entry file and reports which files and packages are actually pulled in at
module load time, how much code they represent, and by what shortest
import chain. Use it to diagnose and shrink startup cost.`,
	}
	root.AddCommand(newTraceCommand())
	return root
}

func newTraceCommand() *cobra.Command {
	var opts cliutil.Options

	cmd := &cobra.Command{
		Use:   "trace <entry>",
		Short: "Report the static and dynamic import graph reachable from an entry file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Entry = args[0]
			opts.ToolVersion = version
			return cliutil.RunTrace(context.Background(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Chain, "chain", "", "find up to --top shortest chains to this package")
	cmd.Flags().StringVar(&opts.Cut, "cut", "", "find the cut point that breaks every shortest chain to this package")
	cmd.Flags().StringVar(&opts.Diff, "diff", "", "compare against another entry file's reachable packages")
	cmd.Flags().StringVar(&opts.DiffFrom, "diff-from", "", "compare against a previously saved snapshot")
	cmd.Flags().StringVar(&opts.Save, "save", "", "save a diffable snapshot of this run to a path")
	cmd.Flags().BoolVar(&opts.IncludeDynamic, "include-dynamic", false, "also traverse dynamic (import()/await import) edges")
	cmd.Flags().IntVar(&opts.Top, "top", 10, "number of heavy packages / chains to report")
	cmd.Flags().IntVar(&opts.TopModules, "top-modules", 20, "number of modules to list in the by-cost listing")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "emit the JSON report schema instead of text")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "ignore and do not update the on-disk cache")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "suppress warning lines")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log cache-tier decisions and other diagnostics")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parse/resolve worker count (0 = GOMAXPROCS)")

	return cmd
}

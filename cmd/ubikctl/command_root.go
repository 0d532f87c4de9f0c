package main

import "github.com/spf13/cobra"

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ubikctl",
		Short:         "Query a running ubik supervisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStatusCmd())
	root.AddCommand(newWatchCmd())

	return root
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run search index maintenance",
		Run:   runOptimize,
	}

	RootCmd.AddCommand(cmd)
}

func runOptimize(cmd *cobra.Command, args []string) {
	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if err := a.keeper.Optimize(cmd.Context()); err != nil {
		exitErr("optimize", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), `{"ok":true}`)
}

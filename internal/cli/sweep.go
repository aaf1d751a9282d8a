package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale staged content files",
		Long:  "Remove leftover files from the staging area older than the configured grace period. Fresh files are kept: a concurrent writer may still be promoting them.",
		Run:   runSweep,
	}

	RootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	n, err := a.keeper.Sweep(cmd.Context())
	if err != nil {
		exitErr("sweep", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"removed":%d}`+"\n", n)
}

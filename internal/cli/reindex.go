package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from stored metadata",
		Long:  "Drop and rebuild the search index from the metadata tables. With --check, only report drift between the two without touching anything.",
		Run:   runReindex,
	}

	cmd.Flags().Bool("check", false, "Report index drift instead of rebuilding")

	RootCmd.AddCommand(cmd)
}

func runReindex(cmd *cobra.Command, args []string) {
	check, _ := cmd.Flags().GetBool("check")

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	if check {
		report, err := a.keeper.CheckIndex(cmd.Context())
		if err != nil {
			exitErr("reindex", err)
		}
		printJSON(report)
		return
	}

	n, err := a.keeper.Reindex(cmd.Context())
	if err != nil {
		exitErr("reindex", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"indexed":%d}`+"\n", n)
}

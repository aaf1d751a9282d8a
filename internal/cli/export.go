package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all memories as JSON",
		Long:  "Export every memory with its full content as a JSON array, suitable for import on another machine.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	entries, err := a.keeper.Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	printJSON(entries)
}

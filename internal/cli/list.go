package cli

import (
	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, most recent first",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 0, "Page size (default from config, max 100)")
	cmd.Flags().IntP("offset", "o", 0, "Rows to skip")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.List(cmd.Context(), keeper.ListRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		exitErr("list", err)
	}

	printJSON(res)
}

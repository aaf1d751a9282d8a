package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Retrieve a memory with its content",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	id, err := parseID(args[0])
	if err != nil {
		exitErr("get", err)
	}

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.Get(cmd.Context(), id)
	if err != nil {
		exitErr("get", err)
	}

	printJSON(res)
}

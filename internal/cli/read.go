package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Read a content file",
		Long:  "Read a raw content file by absolute path. The path must sit inside the content root and reads are capped by max_read_bytes.",
		Args:  cobra.ExactArgs(1),
		Run:   runRead,
	}

	RootCmd.AddCommand(cmd)
}

func runRead(cmd *cobra.Command, args []string) {
	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.ReadFile(cmd.Context(), args[0])
	if err != nil {
		exitErr("read", err)
	}

	printJSON(res)
}

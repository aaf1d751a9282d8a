package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long:  "Import memories from stdin. Expects the format produced by export; entries get fresh ids, paths, and timestamps.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var entries []keeper.ExportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		exitErr("parse json", err)
	}

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	report, err := a.keeper.Import(cmd.Context(), entries)
	if err != nil {
		exitErr("import", err)
	}

	printJSON(report)
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a memory",
		Long: "Edit a memory's content, summary, or keywords. Flags you omit stay unchanged; " +
			"--keywords \"\" clears them. Editing the summary or keywords refreshes the timestamp, editing content alone does not.",
		Args: cobra.ExactArgs(1),
		Run:  runUpdate,
	}

	cmd.Flags().String("content", "", "Replacement content")
	cmd.Flags().Bool("stdin", false, "Read replacement content from stdin")
	cmd.Flags().StringP("summary", "s", "", "Replacement summary")
	cmd.Flags().StringP("keywords", "k", "", "Replacement comma-separated keywords (empty string clears)")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	id, err := parseID(args[0])
	if err != nil {
		exitErr("update", err)
	}

	req := keeper.UpdateRequest{ID: id}

	if stdin, _ := cmd.Flags().GetBool("stdin"); stdin {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		content := string(b)
		req.Content = &content
	} else if cmd.Flags().Changed("content") {
		content, _ := cmd.Flags().GetString("content")
		req.Content = &content
	}

	if cmd.Flags().Changed("summary") {
		summary, _ := cmd.Flags().GetString("summary")
		req.Summary = &summary
	}

	if cmd.Flags().Changed("keywords") {
		keywordsStr, _ := cmd.Flags().GetString("keywords")
		keywords := splitCSV(keywordsStr)
		if keywords == nil {
			// An explicit empty flag clears rather than leaves unchanged.
			keywords = []string{}
		}
		req.Keywords = keywords
	}

	if req.Content == nil && req.Summary == nil && req.Keywords == nil {
		exitErr("update", fmt.Errorf("nothing to change: pass --content, --stdin, --summary, or --keywords"))
	}

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.Update(cmd.Context(), req)
	if err != nil {
		exitErr("update", err)
	}

	printJSON(res)
}

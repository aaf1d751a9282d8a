package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin; the summary is what search matches against.",
		Run:   runPut,
	}

	cmd.Flags().StringP("summary", "s", "", "Short summary, indexed for search (required)")
	cmd.Flags().StringP("keywords", "k", "", "Comma-separated keywords (max 10)")

	cmd.MarkFlagRequired("summary")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	summary, _ := cmd.Flags().GetString("summary")
	keywordsStr, _ := cmd.Flags().GetString("keywords")

	// Content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	if strings.TrimSpace(content) == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.Insert(cmd.Context(), keeper.InsertRequest{
		Content:  strings.TrimSpace(content),
		Summary:  summary,
		Keywords: splitCSV(keywordsStr),
	})
	if err != nil {
		exitErr("put", err)
	}

	printJSON(res)
}

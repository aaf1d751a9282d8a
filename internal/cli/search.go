package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/keeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long: "Ranked full-text search over summaries and keywords. Boost keywords with -k: " +
			"matching memories rank higher but non-matching ones are not filtered out.",
		Args: cobra.MinimumNArgs(1),
		Run:  runSearch,
	}

	cmd.Flags().StringP("keywords", "k", "", "Comma-separated boost keywords")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config, max 100)")
	cmd.Flags().Float64("summary-weight", 0, "Relevance weight of the summary column")
	cmd.Flags().Float64("keyword-weight", 0, "Relevance weight of the keyword column")
	cmd.Flags().Float64("lambda", 0, "Score subtracted per matched boost keyword")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	keywordsStr, _ := cmd.Flags().GetString("keywords")
	limit, _ := cmd.Flags().GetInt("limit")

	req := keeper.SearchRequest{
		Query:    strings.Join(args, " "),
		Keywords: splitCSV(keywordsStr),
		Limit:    limit,
	}
	if cmd.Flags().Changed("summary-weight") {
		w, _ := cmd.Flags().GetFloat64("summary-weight")
		req.SummaryWeight = &w
	}
	if cmd.Flags().Changed("keyword-weight") {
		w, _ := cmd.Flags().GetFloat64("keyword-weight")
		req.KeywordWeight = &w
	}
	if cmd.Flags().Changed("lambda") {
		l, _ := cmd.Flags().GetFloat64("lambda")
		req.Lambda = &l
	}

	a, err := openApp(false)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	res, err := a.keeper.Search(cmd.Context(), req)
	if err != nil {
		exitErr("search", err)
	}

	printJSON(res)
}

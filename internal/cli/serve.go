package cli

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/metrics"
	"github.com/keepsake-ai/keepsake/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the memory tools over stdio",
		Long: "Run the JSON-RPC server on stdin/stdout for agent clients. Logs go to stderr " +
			"and the log file; stdout carries only protocol frames.",
		Run: runServe,
	}

	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on the configured address")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	metricsFlag, _ := cmd.Flags().GetBool("metrics")

	a, err := openApp(true)
	if err != nil {
		exitErr("open", err)
	}
	defer a.close()

	// Staged leftovers from crashed sessions accumulate; clean up before
	// taking requests. Failure is not fatal.
	if n, err := a.keeper.Sweep(cmd.Context()); err != nil {
		a.log.Warn().Err(err).Msg("startup sweep failed")
	} else if n > 0 {
		a.log.Info().Int("removed", n).Msg("swept stale staged files")
	}

	if metricsFlag || a.cfg.Metrics.Enabled {
		addr := a.cfg.Metrics.Addr
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				a.log.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
			}
		}()
		a.log.Info().Str("addr", addr).Msg("metrics listening")
	}

	srv, err := server.New(a.keeper, a.log.Logger)
	if err != nil {
		exitErr("serve", err)
	}

	if err := srv.Serve(cmd.Context(), os.Stdin, os.Stdout); err != nil {
		exitErr("serve", err)
	}
}

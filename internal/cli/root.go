// Package cli implements the keepsake CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepsake-ai/keepsake/internal/config"
	"github.com/keepsake-ai/keepsake/internal/keeper"
	"github.com/keepsake-ai/keepsake/internal/logging"
)

var (
	cfgPath  string
	dbPath   string
	rootPath string
	logLevel string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Persistent memory for AI agents",
	Long: "File-backed agent memory: full content as markdown on disk, summaries and " +
		"keywords in a SQLite search index. Text in, JSON out. Single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default: ~/.keepsake/config.json)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides config)")
	RootCmd.PersistentFlags().StringVarP(&rootPath, "root", "r", "", "Content root directory (overrides config)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// app bundles what every command needs: config, logger, and an open keeper.
type app struct {
	cfg    *config.Config
	log    *logging.Logger
	keeper *keeper.Keeper
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if rootPath != "" {
		cfg.ContentRoot = rootPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openApp loads config and opens the keeper. One-shot commands keep stderr
// quiet; serve passes console=true so operators can watch the session.
func openApp(console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}

	k, err := keeper.Open(cfg, log.Logger)
	if err != nil {
		log.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, keeper: k}, nil
}

func (a *app) close() {
	a.keeper.Close()
	a.log.Close()
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id must be a positive integer, got %q", arg)
	}
	return id, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

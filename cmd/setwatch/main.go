// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 3:05:00 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/app"
	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/models"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	envFile      = flag.String("env", ".env", "Environment file loaded before configuration (ignored if missing)")
	symbol       = flag.String("symbol", "", "Stock symbol (overrides config)")
	watchMode    = flag.Bool("watch", false, "Keep running and check on the configured cron schedule")
	smtpTest     = flag.Bool("smtp-test", false, "Send a test email and exit")
	dryRun       = flag.Bool("dry-run", false, "Log emails instead of sending them and never update state")
	forceSend    = flag.Bool("force-send", false, "Treat every matching announcement as new")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("SET Watch version %s\n", common.GetFullVersion())
		return models.ExitOK
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load .env (real environment wins)
	// 2. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 3. Apply CLI overrides, then validate
	// 4. Initialize logger and print banner
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		return models.ExitFailure
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("setwatch.toml"); err == nil {
			configFiles = append(configFiles, "setwatch.toml")
		} else if _, err := os.Stat("deployments/local/setwatch.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/setwatch.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return models.ExitCode(err)
	}

	applyFlagOverrides(config)

	if err := config.Validate(); err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Invalid configuration")
		return models.ExitCode(err)
	}

	common.InstallCrashHandler(config.Logging.Dir)
	defer common.RecoverWithCrashFile()

	logger := common.SetupLogger(config)
	if *watchMode || !config.IsProduction() {
		common.PrintBanner(config, common.GetVersion(), *watchMode)
	}

	logger.Debug().
		Strs("config_files", configFiles).
		Str("symbol", config.Watch.Symbol).
		Str("lang", config.Watch.Lang).
		Str("state_type", config.State.Type).
		Str("smtp_host", config.SMTP.Host).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration (sanitized)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return models.ExitCode(err)
	}
	defer application.Close()

	switch {
	case config.SMTPTest:
		err = application.SendTestEmail(ctx)
	case *watchMode:
		err = application.Watch(ctx)
	default:
		var summary *models.RunSummary
		summary, err = application.Run(ctx)
		if summary != nil {
			logger.Info().
				Str("run_id", summary.RunID).
				Int("notified", len(summary.Notified)).
				Int("failed", len(summary.Failed)).
				Bool("committed", summary.Committed).
				Msg("Run summary")
		}
	}

	if err != nil {
		code := models.ExitCode(err)
		logger.Error().Err(err).Int("exit_code", code).Msg("SET Watch finished with errors")
		return code
	}
	return models.ExitOK
}

// applyFlagOverrides applies command-line flags (highest priority)
func applyFlagOverrides(config *common.Config) {
	if *symbol != "" {
		config.Watch.Symbol = *symbol
	}
	if *smtpTest {
		config.SMTPTest = true
	}
	if *dryRun {
		config.Watch.DryRun = true
	}
	if *forceSend {
		config.Watch.ForceSend = true
	}
}

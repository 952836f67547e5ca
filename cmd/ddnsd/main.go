package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/honsun/ddnsd"
	"github.com/honsun/ddnsd/config"
)

var rootCmd = &cobra.Command{
	Use:   "ddnsd",
	Short: "Keeps DNS records in sync with local interface addresses",
	Long: `ddnsd periodically compares the public addresses of local network
interfaces against the DNS records at a remote provider and applies the
minimal set of changes. SIGHUP reloads the configuration; SIGINT and
SIGTERM shut down after in-flight sync cycles finish.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringP("config", "c", "config.yml", "Path of the config file")
	rootCmd.Flags().CountP("verbose", "v", "Increase logging verbosity (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetCount("verbose")
	configPath, _ := cmd.Flags().GetString("config")

	logger := buildLogger(verbose)
	defer logger.Sync() //nolint:errcheck

	runner, err := ddnsd.NewRunner(&ddnsd.RunnerOptions{
		Logger: logger,
		Load: func() (*ddnsd.Batch, error) {
			logger.Info("reading config", zap.String("path", configPath))
			root, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			if err := root.Validate(); err != nil {
				return nil, err
			}
			if err := promptMissingSecrets(root); err != nil {
				return nil, err
			}
			batch, err := config.Build(root, logger)
			if err != nil {
				return nil, err
			}
			daemon.SdNotify(false, daemon.SdNotifyReady) //nolint:errcheck
			return batch, nil
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go func() {
		for range hangup {
			logger.Info("received reload signal")
			daemon.SdNotify(false, daemon.SdNotifyReloading) //nolint:errcheck
			runner.Reload()
		}
	}()

	if err := runner.Run(ctx); err != nil {
		logger.Error("runner exited", zap.Error(err))
		return err
	}
	daemon.SdNotify(false, daemon.SdNotifyStopping) //nolint:errcheck
	return nil
}

func buildLogger(verbose int) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	if verbose == 0 {
		logConfig.Level.SetLevel(zap.InfoLevel)
		logConfig.DisableCaller = true
	}
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %s", err)
	}
	return logger
}

// promptMissingSecrets asks for provider credentials left empty in the
// config, so tokens don't have to live in the file at all when running
// interactively.
func promptMissingSecrets(root *config.Root) error {
	for name, provider := range root.Providers {
		if provider.Kind != "cloudflare" || provider.Token != "" {
			continue
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("provider %s has no token and stdin is not a terminal", name)
		}
		fmt.Printf("Enter Cloudflare API token for provider %q: ", name)
		tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading token from stdin: %w", err)
		}
		provider.Token = string(tokenBytes)
		root.Providers[name] = provider
	}
	return nil
}

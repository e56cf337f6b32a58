package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custodia/internal/app"
)

const annotationGated = "custodia/gated"

var (
	home       string
	configPath string
	apiURL     string
	logLevel   string
	wire       *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "custodia",
		Short:         "Device key custody, payload signing and wallet provisioning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Backend != app.BackendMemory {
				if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
					return err
				}
			}
			if cfg.Storage.Secret == "" && cfg.Storage.Backend != app.BackendMemory && stdinIsTerminal() {
				secret, err := readSecret("Storage secret: ")
				if err != nil {
					return err
				}
				cfg.Storage.Secret = secret
			}

			wire, err = app.NewWire(cfg, app.Options{
				Prompt:   promptPasscode,
				Observer: printProvisionStep,
			})
			if err != nil {
				return err
			}
			if cmd.Annotations[annotationGated] == "true" {
				return requireUnlocked(cmd.Context())
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default $CUSTODIA_HOME or ~/.custodia)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "wallet API base URL (e.g. http://127.0.0.1:8090)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(passcodeCmd(), unlockCmd(), lockoutCmd(), keysCmd(), signCmd(), provisionCmd(), kycCmd())

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if wire != nil {
			_ = wire.Close()
		}
	}
	return err
}

// resolveConfig applies, in increasing precedence: defaults, config file,
// environment, flags.
func resolveConfig() (app.Config, error) {
	dir := home
	if dir == "" {
		dir = os.Getenv(app.EnvHome)
	}
	if dir == "" {
		dir = app.DefaultHome()
	}
	path := configPath
	if path == "" {
		path = app.ConfigPath(dir)
	}

	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if home != "" || cfg.Home == "" {
		cfg.Home = dir
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func gated(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationGated] = "true"
	return cmd
}

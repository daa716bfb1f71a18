package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"tpa_auth/internal/config"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/encryption"
	"tpa_auth/internal/service/app"
	"tpa_auth/internal/utils/log"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/term"
)

type flags struct {
	configFile string
	logLevel   string
	algorithm  string
	key        string
	address    string
	network    string
	ui         string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "tpa-client",
		Short: "Three-pass authentication client",
		Long: `Authenticates to a tpa-server, then sends every line read from the console
as an encrypted message. An empty line, Ctrl-D or Esc ends the transmission.`,
		Example: `  # Connect over TCP with the default AES key
  tpa-client

  # Connect over WebSocket to the admin endpoint with a plain console
  tpa-client --network ws --address localhost:9090 --ui plain`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "configuration file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "logging level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().StringVarP(&f.algorithm, "algorithm", "a", "", "cipher algorithm (DES, TDES, AES, TKTDES, RSA)")
	cmd.Flags().StringVarP(&f.key, "key", "k", "", "pre-shared key in hex")
	cmd.Flags().StringVar(&f.address, "address", "", "server address (host:port)")
	cmd.Flags().StringVarP(&f.network, "network", "n", "", "transport (tcp, ws)")
	cmd.Flags().StringVar(&f.ui, "ui", "", "console (auto, plain, tui)")

	return cmd
}

func loadConfig(cmd *cobra.Command, f *flags) (*config.Client, error) {
	cfg, err := config.LoadClientFile(f.configFile)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if set("algorithm") {
		cfg.Key.Algorithm = f.algorithm
	}
	if set("key") {
		cfg.Key.Key = f.key
	}
	if set("address") {
		host, port, err := splitAddress(f.address)
		if err != nil {
			return nil, err
		}
		cfg.Connect.Host, cfg.Connect.Port = host, port
	}
	if set("network") {
		cfg.Connect.Network = f.network
	}
	if set("ui") {
		cfg.Connect.UI = f.ui
	}
	return cfg, cfg.FixupAndValidate()
}

func run(cfg *config.Client) (err error) {
	// The terminal UI owns the screen, logs go to a file or nowhere.
	if usesTUI(cfg.Connect.UI) && cfg.Logging.File == "" {
		cfg.Logging.Disable = true
	}
	if err := log.Init(cfg.Logging.Log()); err != nil {
		return fmt.Errorf("init log: %w", err)
	}

	var opts []app.Option
	if alg, _, _ := cfg.Key.Material(); alg == algorithm.RSA {
		priv, err := encryption.LoadOrGenerateKey(cfg.Key.PrivateKeyFile, cfg.Key.RSAKeySize)
		if err != nil {
			return fmt.Errorf("rsa key: %w", err)
		}
		opts = append(opts, app.WithPrivateKey(priv))
	}

	console, err := app.NewConsole(cfg.Connect.UI)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, console.Close())
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second signal while blocked on input kills the process.
		<-ctx.Done()
		stop()
	}()

	return app.NewApp(cfg, console, opts...).Run(ctx)
}

func usesTUI(ui string) bool {
	switch ui {
	case config.UITUI:
		return true
	case config.UIAuto:
		return term.IsTerminal(int(os.Stdin.Fd()))
	default:
		return false
	}
}

func splitAddress(address string) (string, int, error) {
	host, p, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --address: %w", err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --address port %q", p)
	}
	return host, port, nil
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"tpa_auth/internal/config"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/encryption"
	"tpa_auth/internal/repository/session"
	redisSvc "tpa_auth/internal/service/redis"
	"tpa_auth/internal/service/server"
	"tpa_auth/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type flags struct {
	configFile string
	logLevel   string
	algorithm  string
	key        string
	address    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "tpa-server",
		Short: "Three-pass authentication server",
		Example: `  # Serve AES with the default key on localhost:12345
  tpa-server

  # Serve DES with a config file and a key override
  tpa-server -c server.toml --algorithm DES --key 0011223344556677`,
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
	cmd.Flags().StringVar(&f.address, "address", "", "listen address (host:port)")

	return cmd
}

func loadConfig(cmd *cobra.Command, f *flags) (*config.Server, error) {
	cfg, err := config.LoadServerFile(f.configFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if cmd.Flags().Changed("algorithm") {
		cfg.Key.Algorithm = f.algorithm
	}
	if cmd.Flags().Changed("key") {
		cfg.Key.Key = f.key
	}
	if cmd.Flags().Changed("address") {
		host, port, err := splitAddress(f.address)
		if err != nil {
			return nil, err
		}
		cfg.Listen.Host, cfg.Listen.Port = host, port
	}
	return cfg, cfg.FixupAndValidate()
}

func run(cfg *config.Server) (err error) {
	if err := log.Init(cfg.Logging.Log()); err != nil {
		return fmt.Errorf("init log: %w", err)
	}

	var (
		opts    []server.Option
		closers []func() error
	)
	defer func() {
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		_ = log.Sync()
	}()

	if cfg.Redis.Enabled() {
		svc, err := initRedis(cfg.Redis)
		if err != nil {
			return err
		}
		closers = append(closers, svc.Close)
		opts = append(opts, server.WithJournal(redisSvc.NewJournal(svc, cfg.Redis.MaxEntries, cfg.Redis.Expiration())))
		log.Info("message journal enabled", zap.String("redis", cfg.Redis.Addr))
	}

	if cfg.Mongo.Enabled() {
		client, err := initMongo(cfg.Mongo.URI)
		if err != nil {
			return err
		}
		closers = append(closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		opts = append(opts, server.WithAudit(session.NewSessionRepo(client.Database(cfg.Mongo.Database))))
		log.Info("session audit enabled", zap.String("database", cfg.Mongo.Database))
	}

	if alg, _, _ := cfg.Key.Material(); alg == algorithm.RSA {
		priv, err := encryption.LoadOrGenerateKey(cfg.Key.PrivateKeyFile, cfg.Key.RSAKeySize)
		if err != nil {
			return fmt.Errorf("rsa key: %w", err)
		}
		opts = append(opts, server.WithPrivateKey(priv))
	}

	s, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

func initRedis(cfg *config.Redis) (*redisSvc.RedisService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, err := redisSvc.Dial(ctx, &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	return svc, nil
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("init mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("init mongo: %w", err)
	}
	return client, nil
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

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/ipni/securedraw"
	"github.com/ipni/securedraw/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	logger = logging.Logger("securedrawd")

	configPath string
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the securedraw HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "securedraw.yml", "path to the configuration file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level of the securedraw subsystems")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := logging.SetLogLevel("securedraw", logLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	_ = logging.SetLogLevel("securedrawd", logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	opts, err := options(cfg)
	if err != nil {
		return err
	}
	sd, err := securedraw.New(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := sd.Start(ctx); err != nil {
		return err
	}
	logger.Infow("Serving", "addr", cfg.ListenAddr, "slotDuration", cfg.Clock.SlotDuration, "commitmentTTL", cfg.CommitmentTTL)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sd.Shutdown(shutdownCtx)
}

func options(cfg *config.Config) ([]securedraw.Option, error) {
	genesis := cfg.Clock.Genesis
	if genesis.IsZero() {
		genesis = time.Now()
	}
	clock := securedraw.WallClock{Genesis: genesis, SlotDuration: cfg.Clock.SlotDuration}
	opts := []securedraw.Option{
		securedraw.WithHTTPServerListenAddr(cfg.ListenAddr),
		securedraw.WithStorePath(cfg.StorePath),
		securedraw.WithDatabasePath(cfg.DatabasePath),
		securedraw.WithClock(clock),
		securedraw.WithOracle(securedraw.NewBeaconOracle(clock, nil)),
		securedraw.WithCommitmentTTL(cfg.CommitmentTTL),
		securedraw.WithRequestWindow(cfg.RequestWindow),
	}
	if cfg.Redis != nil {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		ledger, err := securedraw.NewRedisLedger(redisOpts, cfg.Redis.Namespace)
		if err != nil {
			return nil, err
		}
		opts = append(opts, securedraw.WithLedger(ledger))
	}
	return opts, nil
}

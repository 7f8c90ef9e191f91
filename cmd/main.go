// Command spreadsniper runs hedged paired trades on two accounts whenever the
// monitored spread is tight enough, keeping the combined position flat.
//
// Usage:
//
//	spreadsniper --config config.yaml
//	spreadsniper setup              (interactive config wizard)
//	spreadsniper --interactive      (choose rotation and mode at launch)
//
// Optional environment variables (a .env file is loaded when present):
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
//	BYBIT_API_KEY, BYBIT_API_SECRET
//	TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/spreadsniper/config"
	"github.com/vadiminshakov/spreadsniper/internal"
	"github.com/vadiminshakov/spreadsniper/internal/clients"
	"github.com/vadiminshakov/spreadsniper/internal/session"
	"github.com/vadiminshakov/spreadsniper/internal/setup"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		os.Args = []string{os.Args[0], "--config", setup.GeneratedConfig}
	}

	configs, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bots := make([]*internal.SniperBot, 0, len(configs))
	for _, conf := range configs {
		logger, err := newLogger(conf)
		if err != nil {
			log.Fatal(err)
		}
		defer logger.Sync()

		bot, err := internal.NewSniperBot(logger, conf, newClient(conf))
		if err != nil {
			log.Fatal(err)
		}

		// interactive selection runs one group at a time
		if err := bot.Prepare(ctx); err != nil {
			log.Fatal(err)
		}
		bots = append(bots, bot)
	}

	var g errgroup.Group
	for _, bot := range bots {
		g.Go(func() error {
			record, runErr := bot.Run(ctx)
			fmt.Println(session.RenderReport(record, bot.Config.Session))

			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := bot.Close(closeCtx); err != nil && runErr == nil {
				return err
			}

			return runErr
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}

func newClient(conf config.Config) any {
	switch conf.Platform {
	case config.PlatformBinance:
		return clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
	case config.PlatformBybit:
		return clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
	default:
		return nil
	}
}

// newLogger writes to stderr and to the group's daily log file.
func newLogger(conf config.Config) (*zap.Logger, error) {
	if err := os.MkdirAll(conf.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr", conf.LogFile(time.Now())}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}

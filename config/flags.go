package config

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// Get parses command line flags. With --config the yaml sessions are returned,
// otherwise a single session is built from flags.
func Get() ([]Config, error) {
	return parse(os.Args[1:])
}

func parse(args []string) ([]Config, error) {
	def := Default()

	fs := flag.NewFlagSet("spreadsniper", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to yaml config")
	interactive := fs.Bool("interactive", false, "choose account group and trade mode interactively")
	accountA := fs.String("account-a", def.Session.AccountNames.A(), "name of account A")
	accountB := fs.String("account-b", def.Session.AccountNames.B(), "name of account B")
	platform := fs.String("platform", def.Platform, "market data source: paper, binance or bybit")
	pairFlag := fs.String("pair", def.Pair.String(), "monitored pair, example: BTC_USDT")
	mode := fs.String("mode", string(def.Session.InitialMode), "trade mode: open_a, open_b, close (or 1, 2, 3)")
	manual := fs.Bool("manual", false, "disable auto rotation")
	spread := fs.String("spread-threshold", def.Session.SpreadThreshold.String(), "fire below this spread, percent")
	minDepth := fs.String("min-depth", def.Session.MinDepth.String(), "minimum size on both book sides")
	maxTrades := fs.Int("max-trades", def.Session.MaxTrades, "successful cycles per 24h")
	forceExit := fs.Int("force-exit-trades", def.Session.ForceExitTrades, "manual mode trade cap")
	sessionLimit := fs.Int("session-limit", def.Limiter.SessionLimit, "trades per run")
	poll := fs.Duration("poll-interval", def.Session.PollInterval, "loop pause")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address, example: :9090")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		configs, err := getYaml(*configPath)
		if err != nil {
			return nil, err
		}
		for i := range configs {
			configs[i].Interactive = *interactive
		}
		return configs, nil
	}

	cfg := def
	cfg.Interactive = *interactive
	cfg.Platform = *platform
	cfg.Session.AccountNames = domain.NewPerAccount(*accountA, *accountB)
	cfg.Session.Group = GroupID(*accountA, *accountB)
	cfg.Session.AutoRotation = !*manual
	cfg.Session.MaxTrades = *maxTrades
	cfg.Session.ForceExitTrades = *forceExit
	cfg.Session.PollInterval = *poll
	cfg.Limiter.SessionLimit = *sessionLimit
	cfg.MetricsAddr = *metricsAddr

	var err error
	if cfg.Pair, err = domain.ParsePair(*pairFlag); err != nil {
		return nil, errors.Wrapf(err, "invalid --pair provided, --pair=%s", *pairFlag)
	}
	if cfg.Session.InitialMode, err = domain.ParseTradeMode(*mode); err != nil {
		return nil, errors.Wrapf(err, "invalid --mode provided, --mode=%s", *mode)
	}
	if cfg.Session.SpreadThreshold, err = decimal.NewFromString(*spread); err != nil {
		return nil, errors.Wrapf(err, "invalid --spread-threshold provided, --spread-threshold=%s", *spread)
	}
	if cfg.Session.MinDepth, err = decimal.NewFromString(*minDepth); err != nil {
		return nil, errors.Wrapf(err, "invalid --min-depth provided, --min-depth=%s", *minDepth)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return []Config{cfg}, nil
}

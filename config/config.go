// Package config loads session configuration from yaml or command line flags.
package config

import (
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
	"github.com/vadiminshakov/spreadsniper/internal/services/paper"
	"github.com/vadiminshakov/spreadsniper/internal/services/ratelimit"
	"github.com/vadiminshakov/spreadsniper/internal/session"
)

const (
	PlatformPaper   = "paper"
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"

	defaultStateDir = "./data"
	defaultWALDir   = "./wal"
	defaultLogDir   = "./logs"
)

// Config is one account group session.
type Config struct {
	Platform string
	Pair     domain.Pair

	Session session.Config
	Limiter ratelimit.LimiterConfig
	Paper   paper.Config

	StateDir    string
	WALDir      string
	LogDir      string
	MetricsAddr string
	Interactive bool
}

// ConfigTmp is the yaml form of Config. Decimals are strings.
type ConfigTmp struct {
	AccountA string `yaml:"account_a"`
	AccountB string `yaml:"account_b"`
	Group    string `yaml:"group,omitempty"`
	Platform string `yaml:"platform"`
	Pair     string `yaml:"pair"`

	Mode         string `yaml:"mode,omitempty"`
	AutoRotation *bool  `yaml:"auto_rotation,omitempty"`

	SpreadThreshold string `yaml:"spread_threshold,omitempty"`
	MinDepth        string `yaml:"min_depth,omitempty"`
	Epsilon         string `yaml:"epsilon,omitempty"`
	Ceiling         string `yaml:"ceiling,omitempty"`
	RotationTarget  string `yaml:"rotation_target,omitempty"`
	MinBalance      string `yaml:"min_balance,omitempty"`

	MaxTrades        int `yaml:"max_trades,omitempty"`
	ForceExitTrades  int `yaml:"force_exit_trades,omitempty"`
	SessionLimit     int `yaml:"session_limit,omitempty"`
	MaxOrders        int `yaml:"max_orders,omitempty"`
	SafetyThreshold  int `yaml:"safety_threshold,omitempty"`
	FeeCheckInterval int `yaml:"fee_check_interval,omitempty"`

	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	SettleDelay  time.Duration `yaml:"settle_delay,omitempty"`

	Quantity       string `yaml:"quantity,omitempty"`
	InitialBalance string `yaml:"initial_balance,omitempty"`
	Leverage       int    `yaml:"leverage,omitempty"`
	FeeRate        string `yaml:"fee_rate,omitempty"`
	RejectEvery    int    `yaml:"reject_every,omitempty"`

	StateDir    string `yaml:"state_dir,omitempty"`
	WALDir      string `yaml:"wal_dir,omitempty"`
	LogDir      string `yaml:"log_dir,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a paper BTC_USDT session for the Shark 1 and Shark 2 accounts.
func Default() Config {
	s := session.DefaultConfig()
	s.AccountNames = domain.NewPerAccount("Shark 1", "Shark 2")
	s.Group = GroupID(s.AccountNames.A(), s.AccountNames.B())

	return Config{
		Platform: PlatformPaper,
		Pair:     domain.Pair{From: "BTC", To: "USDT"},
		Session:  s,
		Limiter: ratelimit.LimiterConfig{
			Window:          ratelimit.DefaultWindow,
			MaxOrders:       ratelimit.DefaultMaxOrders,
			SafetyThreshold: ratelimit.DefaultSafetyThreshold,
			SessionLimit:    ratelimit.DefaultSessionLimit,
		},
		Paper:    paper.DefaultConfig(),
		StateDir: defaultStateDir,
		WALDir:   defaultWALDir,
		LogDir:   defaultLogDir,
	}
}

// GroupID derives the file-safe group identifier from the digits in both
// account names, e.g. "Shark 3" and "Shark 4" give "shark3_4".
func GroupID(nameA, nameB string) string {
	a, b := digits(nameA), digits(nameB)
	if a == "" && b == "" {
		return slug(nameA) + "_" + slug(nameB)
	}
	return "shark" + a + "_" + b
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func getYaml(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var tmps []ConfigTmp
	if err := yaml.Unmarshal(data, &tmps); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if len(tmps) == 0 {
		return nil, errors.Errorf("config %s has no sessions", path)
	}

	configs := make([]Config, 0, len(tmps))
	seen := make(map[string]bool, len(tmps))
	for i, tmp := range tmps {
		cfg, err := tmp.toConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "session #%d", i+1)
		}
		if seen[cfg.Session.Group] {
			return nil, errors.Errorf("session #%d: duplicate group %q", i+1, cfg.Session.Group)
		}
		seen[cfg.Session.Group] = true
		configs = append(configs, cfg)
	}

	return configs, nil
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.AccountA != "" || c.AccountB != "" {
		if c.AccountA == "" || c.AccountB == "" {
			return Config{}, errors.New("both 'account_a' and 'account_b' must be set")
		}
		cfg.Session.AccountNames = domain.NewPerAccount(c.AccountA, c.AccountB)
	}
	cfg.Session.Group = GroupID(cfg.Session.AccountNames.A(), cfg.Session.AccountNames.B())
	if c.Group != "" {
		cfg.Session.Group = c.Group
	}

	if c.Platform != "" {
		cfg.Platform = strings.ToLower(c.Platform)
	}
	if c.Pair != "" {
		pair, err := domain.ParsePair(c.Pair)
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect 'pair' param %q", c.Pair)
		}
		cfg.Pair = pair
	}

	if c.Mode != "" {
		mode, err := domain.ParseTradeMode(c.Mode)
		if err != nil {
			return Config{}, errors.Wrap(err, "incorrect 'mode' param")
		}
		cfg.Session.InitialMode = mode
	}
	if c.AutoRotation != nil {
		cfg.Session.AutoRotation = *c.AutoRotation
	}

	decimals := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"spread_threshold", c.SpreadThreshold, &cfg.Session.SpreadThreshold},
		{"min_depth", c.MinDepth, &cfg.Session.MinDepth},
		{"epsilon", c.Epsilon, &cfg.Session.Balancer.Epsilon},
		{"ceiling", c.Ceiling, &cfg.Session.Ceiling},
		{"rotation_target", c.RotationTarget, &cfg.Session.RotationTarget},
		{"min_balance", c.MinBalance, &cfg.Session.MinAvailableBalance},
		{"quantity", c.Quantity, &cfg.Paper.Quantity},
		{"initial_balance", c.InitialBalance, &cfg.Paper.InitialBalance},
		{"fee_rate", c.FeeRate, &cfg.Paper.FeeRate},
	}
	for _, d := range decimals {
		if d.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(d.raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect '%s' param (must be a decimal)", d.name)
		}
		*d.dst = v
	}

	setInt(&cfg.Session.MaxTrades, c.MaxTrades)
	setInt(&cfg.Session.ForceExitTrades, c.ForceExitTrades)
	setInt(&cfg.Session.FeeCheckInterval, c.FeeCheckInterval)
	setInt(&cfg.Limiter.SessionLimit, c.SessionLimit)
	setInt(&cfg.Limiter.MaxOrders, c.MaxOrders)
	setInt(&cfg.Limiter.SafetyThreshold, c.SafetyThreshold)
	setInt(&cfg.Paper.Leverage, c.Leverage)
	setInt(&cfg.Paper.RejectEvery, c.RejectEvery)

	if c.PollInterval > 0 {
		cfg.Session.PollInterval = c.PollInterval
	}
	if c.SettleDelay > 0 {
		cfg.Session.SettleDelay = c.SettleDelay
	}

	setString(&cfg.StateDir, c.StateDir)
	setString(&cfg.WALDir, c.WALDir)
	setString(&cfg.LogDir, c.LogDir)
	setString(&cfg.MetricsAddr, c.MetricsAddr)

	return cfg, cfg.Validate()
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks thresholds and the platform name.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformPaper, PlatformBinance, PlatformBybit:
	default:
		return errors.Errorf("unsupported platform %q", c.Platform)
	}

	s := c.Session
	if !s.InitialMode.IsValid() {
		return errors.Errorf("unknown mode %q", s.InitialMode)
	}

	positive := []struct {
		name string
		v    decimal.Decimal
	}{
		{"spread_threshold", s.SpreadThreshold},
		{"epsilon", s.Balancer.Epsilon},
		{"ceiling", s.Ceiling},
		{"rotation_target", s.RotationTarget},
		{"quantity", c.Paper.Quantity},
	}
	for _, p := range positive {
		if !p.v.IsPositive() {
			return errors.Errorf("'%s' must be positive, got %s", p.name, p.v.String())
		}
	}

	if s.MinDepth.IsNegative() || s.MinAvailableBalance.IsNegative() {
		return errors.New("'min_depth' and 'min_balance' must not be negative")
	}
	if s.Ceiling.LessThan(s.Balancer.Epsilon) {
		return errors.Errorf("'ceiling' %s is below 'epsilon' %s", s.Ceiling.String(), s.Balancer.Epsilon.String())
	}
	if c.Limiter.SafetyThreshold > c.Limiter.MaxOrders {
		return errors.Errorf("'safety_threshold' %d exceeds 'max_orders' %d", c.Limiter.SafetyThreshold, c.Limiter.MaxOrders)
	}
	if s.PollInterval < 0 || s.SettleDelay < 0 {
		return errors.New("'poll_interval' and 'settle_delay' must not be negative")
	}
	if s.MaxTrades < 0 || s.ForceExitTrades < 0 || c.Limiter.SessionLimit < 0 || s.FeeCheckInterval < 0 {
		return errors.New("trade limits must not be negative")
	}
	if c.Paper.RejectEvery < 0 {
		return errors.New("'reject_every' must not be negative")
	}

	return nil
}

// LogFile returns logs/spreadsniper_<group>_<yyyymmdd>.log for the given day.
func (c Config) LogFile(day time.Time) string {
	return strings.TrimRight(c.LogDir, "/") + "/spreadsniper_" + c.Session.Group + "_" + day.Format("20060102") + ".log"
}

// Package setup holds the interactive config wizard and launch-time mode selection.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/spreadsniper/config"
	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// GeneratedConfig is where RunTUI writes the yaml config.
const GeneratedConfig = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)

	boxStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1)
)

func clearScreen(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and saves config.gen.yaml.
func RunTUI() error {
	var (
		accountA     = "Shark 1"
		accountB     = "Shark 2"
		platform     string
		pair         = "BTC_USDT"
		spread       = "0.001"
		minDepth     = "0.03"
		sessionLimit = "300"
		rotation     string
		confirm      bool
	)

	clearScreen("SPREADSNIPER CONFIG WIZARD")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Two accounts, one spread, zero net exposure.\n"))

	fmt.Println(stepStyle.Render("STEP 1: ACCOUNTS"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account A").
				Description("Main account name, digits form the group id (e.g. Shark 1)").
				Value(&accountA).
				Validate(notEmpty("account name")),
			huh.NewInput().
				Title("Account B").
				Description("Hedge account name (e.g. Shark 2)").
				Value(&accountB).
				Validate(notEmpty("account name")),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("SPREADSNIPER CONFIG WIZARD")
	fmt.Println(stepStyle.Render("STEP 2: MARKET DATA"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select market data source").
				Options(
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Paper (static book)", config.PlatformPaper),
				).
				Value(&platform),
			huh.NewInput().
				Title("Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&pair).
				Validate(func(s string) error {
					_, err := domain.ParsePair(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("SPREADSNIPER CONFIG WIZARD")
	fmt.Println(stepStyle.Render("STEP 3: TRIGGER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spread threshold %").
				Description("Fire only while the spread is below this value (e.g. 0.001)").
				Value(&spread).
				Validate(validatePositive),
			huh.NewInput().
				Title("Minimum book depth").
				Description("Size required on both sides of the book (e.g. 0.03)").
				Value(&minDepth).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Session trade limit").
				Value(&sessionLimit).
				Validate(validatePositive),
			huh.NewSelect[string]().
				Title("Rotation").
				Options(
					huh.NewOption("Auto (open, close, open the other side)", "auto"),
					huh.NewOption("Manual (fixed mode)", "manual"),
				).
				Value(&rotation),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("SPREADSNIPER CONFIG WIZARD")
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Accounts: %s / %s (group %s)\nMarket: %s %s\nSpread below: %s%%\nMin depth: %s\nSession limit: %s\nRotation: %s\n",
		accountA, accountB, config.GroupID(accountA, accountB), platform, pair, spread, minDepth, sessionLimit, rotation,
	)
	fmt.Println(boxStyle.Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return errors.New("setup cancelled by user")
	}

	limit, _ := decimal.NewFromString(sessionLimit)
	auto := rotation == "auto"
	cfgTmp := config.ConfigTmp{
		AccountA:        accountA,
		AccountB:        accountB,
		Platform:        platform,
		Pair:            pair,
		SpreadThreshold: spread,
		MinDepth:        minDepth,
		SessionLimit:    int(limit.IntPart()),
		AutoRotation:    &auto,
	}

	data, err := yaml.Marshal([]config.ConfigTmp{cfgTmp})
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}

	if err := os.WriteFile(GeneratedConfig, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting sniper...", GeneratedConfig)))
	time.Sleep(1500 * time.Millisecond)

	return nil
}

// Selection is the operator's launch-time choice.
type Selection struct {
	Auto bool
	Mode domain.TradeMode
}

// SelectMode shows current positions and asks for auto rotation or a fixed mode.
func SelectMode(group string, names domain.PerAccount[string], readings domain.PerAccount[domain.AccountReading], current Selection) (Selection, error) {
	clearScreen("SPREADSNIPER " + strings.ToUpper(group))
	fmt.Println(stepStyle.Render("CURRENT POSITIONS"))
	fmt.Println(boxStyle.Render(PositionsSummary(names, readings)))

	rotation := "manual"
	if current.Auto {
		rotation = "auto"
	}
	mode := string(current.Mode)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Rotation").
				Options(
					huh.NewOption("Auto rotation", "auto"),
					huh.NewOption("Manual mode", "manual"),
				).
				Value(&rotation),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Trade mode").
				Options(
					huh.NewOption(domain.TradeModeOpenA.Describe(), string(domain.TradeModeOpenA)),
					huh.NewOption(domain.TradeModeOpenB.Describe(), string(domain.TradeModeOpenB)),
					huh.NewOption(domain.TradeModeClose.Describe(), string(domain.TradeModeClose)),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return Selection{}, err
	}

	parsed, err := domain.ParseTradeMode(mode)
	if err != nil {
		return Selection{}, err
	}

	return Selection{Auto: rotation == "auto", Mode: parsed}, nil
}

// PositionsSummary renders one line per account plus a warning when the
// accounts are not hedged.
func PositionsSummary(names domain.PerAccount[string], readings domain.PerAccount[domain.AccountReading]) string {
	var sb strings.Builder

	for _, id := range domain.AllAccounts {
		r := readings.Get(id)
		pos := "unknown"
		if r.Position.Valid {
			pos = r.Position.Decimal.String() + " " + r.Direction.String()
		}
		bal := "unknown"
		if r.Balance.Valid {
			bal = r.Balance.Decimal.StringFixed(2) + " USD"
		}
		fmt.Fprintf(&sb, "%s %-12s position %-14s available %s\n", id, names.Get(id), pos, bal)
	}

	a, b := readings.A(), readings.B()
	if a.Position.Valid && b.Position.Valid {
		fmt.Fprintf(&sb, "diff %s", domain.ReadingDiff(readings).Decimal.String())
		if a.Direction != domain.DirectionNone && a.Direction == b.Direction {
			sb.WriteString("\n")
			sb.WriteString(lipgloss.NewStyle().Foreground(warning).Render("both accounts are " + a.Direction.String()))
		}
	}

	return sb.String()
}

func notEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

func validateDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func validatePositive(s string) error {
	if err := validateDecimal(s); err != nil {
		return err
	}
	if d, _ := decimal.NewFromString(s); d.IsZero() {
		return errors.New("must be positive")
	}
	return nil
}

package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/hyperdash/config"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"github.com/vadiminshakov/hyperdash/internal/storage/agentstore"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

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
)

// RunTUI launches the terminal configuration wizard. It writes
// config.gen.yaml and, when trading is enabled, stores the agent credential
// locally.
func RunTUI() error {
	var (
		network       string
		coin          string
		interval      string
		listenAddr    string
		enableTrading bool
		ownerAddress  string
		agentName     string
		agentKey      string
		confirm       bool
	)

	// defaults
	coin = "BTC"
	interval = "1m"
	listenAddr = ":8080"
	agentName = "hyperdash"

	// step 1: welcome + network
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("HYPERDASH CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your dashboard streaming.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Hyperliquid network").
				Options(
					huh.NewOption("Mainnet", "mainnet"),
					huh.NewOption("Testnet", "testnet"),
				).
				Value(&network),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: market
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: MARKET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Coin").
				Description("Initially selected symbol (e.g. BTC)").
				Value(&coin).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("coin cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Candle Interval").
				Options(
					huh.NewOption("1 minute", "1m"),
					huh.NewOption("5 minutes", "5m"),
					huh.NewOption("15 minutes", "15m"),
					huh.NewOption("1 hour", "1h"),
					huh.NewOption("4 hours", "4h"),
					huh.NewOption("1 day", "1d"),
				).
				Value(&interval),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: server
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen Address").
				Description("host:port for the dashboard (e.g. :8080)").
				Value(&listenAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 4: trading (optional)
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TRADING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable order submission?").
				Description("Requires an approved API agent key. The key is stored locally and never transmitted.").
				Affirmative("Yes").
				Negative("No, read-only").
				Value(&enableTrading),
		),
	).Run()
	if err != nil {
		return err
	}

	if enableTrading {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Wallet Owner Address").
					Description("The account the agent trades for (0x...)").
					Value(&ownerAddress).
					Validate(validateAddress),
				huh.NewInput().
					Title("Agent Name").
					Value(&agentName),
				huh.NewInput().
					Title("Agent Private Key").
					Value(&agentKey).
					EchoMode(huh.EchoModePassword).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return fmt.Errorf("private key cannot be empty")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("HYPERDASH CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	trading := "read-only"
	if enableTrading {
		trading = "enabled for " + ownerAddress
	}
	summary := fmt.Sprintf(
		"Network: %s\nCoin: %s\nInterval: %s\nListen: %s\nTrading: %s\n",
		network, coin, interval, listenAddr, trading,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

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
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		Network:      network,
		Coin:         strings.ToUpper(strings.TrimSpace(coin)),
		Interval:     interval,
		ListenAddr:   listenAddr,
		OwnerAddress: ownerAddress,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	if enableTrading {
		store, err := agentstore.NewStore("")
		if err != nil {
			return fmt.Errorf("failed to open agent store: %w", err)
		}
		if err := store.Put(domain.AgentRecord{
			OwnerAddress: ownerAddress,
			AgentName:    agentName,
			PrivateKey:   agentKey,
		}); err != nil {
			return fmt.Errorf("failed to save agent record: %w", err)
		}
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting dashboard...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") || len(s) != 42 {
		return fmt.Errorf("must be a 0x-prefixed 40-hex-char address")
	}
	return nil
}

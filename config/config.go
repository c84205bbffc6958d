package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/vadiminshakov/hyperdash/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	mainnetAPIURL = "https://api.hyperliquid.xyz"
	testnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	mainnetWSURL  = "wss://api.hyperliquid.xyz/ws"
	testnetWSURL  = "wss://api.hyperliquid-testnet.xyz/ws"
)

// Config dashboard runtime parameters.
type Config struct {
	Network      string
	Coin         string
	Interval     domain.Interval
	ListenAddr   string
	BookRows     int
	SeedBuckets  int
	OwnerAddress string
}

// ConfigTmp is the yaml file shape; the setup wizard marshals it too.
type ConfigTmp struct {
	Network      string `yaml:"network"`
	Coin         string `yaml:"coin"`
	Interval     string `yaml:"interval"`
	ListenAddr   string `yaml:"listen_addr"`
	BookRows     int    `yaml:"book_rows,omitempty"`
	SeedBuckets  int    `yaml:"seed_buckets,omitempty"`
	OwnerAddress string `yaml:"owner_address,omitempty"`
}

// APIURL returns the REST base URL for the configured network.
func (c Config) APIURL() string {
	if c.Network == "testnet" {
		return testnetAPIURL
	}
	return mainnetAPIURL
}

// WSURL returns the WebSocket feed URL for the configured network.
func (c Config) WSURL() string {
	if c.Network == "testnet" {
		return testnetWSURL
	}
	return mainnetWSURL
}

// Get reads the configuration from a yaml file when -config is provided,
// otherwise from CLI flags.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	network := flag.String("network", "mainnet", "hyperliquid network: mainnet or testnet")
	coin := flag.String("coin", "BTC", "initially selected coin, example: BTC")
	interval := flag.String("interval", "1m", "initially selected candle interval, example: 15m")
	listen := flag.String("listen", ":8080", "dashboard listen address")
	bookRows := flag.Int("bookrows", 0, "visible order book rows per side")
	seedBuckets := flag.Int("seedbuckets", 0, "candle buckets fetched on selection")
	owner := flag.String("owner", "", "wallet owner address for order submission (optional)")
	flag.Parse()

	if *configPath != "" {
		return FromYaml(*configPath)
	}

	cfg := Config{
		Network:      *network,
		Coin:         *coin,
		ListenAddr:   *listen,
		BookRows:     *bookRows,
		SeedBuckets:  *seedBuckets,
		OwnerAddress: *owner,
	}

	iv, err := domain.ParseInterval(*interval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --interval provided, --interval=%s", *interval)
	}
	cfg.Interval = iv

	return validate(cfg)
}

// FromYaml loads the configuration from a yaml file.
func FromYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Network:      tmp.Network,
		Coin:         tmp.Coin,
		ListenAddr:   tmp.ListenAddr,
		BookRows:     tmp.BookRows,
		SeedBuckets:  tmp.SeedBuckets,
		OwnerAddress: tmp.OwnerAddress,
	}
	if cfg.Network == "" {
		cfg.Network = "mainnet"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if tmp.Interval == "" {
		tmp.Interval = "1m"
	}

	iv, err := domain.ParseInterval(tmp.Interval)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'interval' param in yaml config: %s, error: %w", tmp.Interval, err)
	}
	cfg.Interval = iv

	return validate(cfg)
}

func validate(cfg Config) (Config, error) {
	if cfg.Network != "mainnet" && cfg.Network != "testnet" {
		return Config{}, fmt.Errorf("unknown network %q, want mainnet or testnet", cfg.Network)
	}
	if cfg.Coin == "" {
		return Config{}, fmt.Errorf("coin must not be empty")
	}
	return cfg, nil
}

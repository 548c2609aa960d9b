package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// PriceFeed declares an admin-registered exchange rate: one unit of the
// Unit currency is worth RateNumerator/RateDenominator units of the Pricing
// currency.
type PriceFeed struct {
	PricingCurrency uint32 `toml:"PricingCurrency"`
	UnitCurrency    uint32 `toml:"UnitCurrency"`
	RateNumerator   int64  `toml:"RateNumerator"`
	RateDenominator int64  `toml:"RateDenominator"`
}

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress       string      `toml:"RPCAddress"`
	DataDir          string      `toml:"DataDir"`
	Environment      string      `toml:"Environment"`
	TerminalID       string      `toml:"TerminalID"`
	FeeProject       uint64      `toml:"FeeProject"`
	FeeRateBps       uint16      `toml:"FeeRateBps"`
	FeelessAddresses []string    `toml:"FeelessAddresses"`
	RateDecimals     uint8       `toml:"RateDecimals"`
	PriceFeeds       []PriceFeed `toml:"PriceFeeds"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tresor-data"
	}
	if strings.TrimSpace(cfg.TerminalID) == "" {
		cfg.TerminalID = "terminal-primary"
	}
	if cfg.FeelessAddresses == nil {
		cfg.FeelessAddresses = []string{}
	}
}

// Validate rejects configurations the daemon cannot safely run with.
func (c *Config) Validate() error {
	if c.FeeRateBps > 10_000 {
		return fmt.Errorf("config: FeeRateBps %d exceeds 10000", c.FeeRateBps)
	}
	for i, feed := range c.PriceFeeds {
		if feed.RateNumerator <= 0 || feed.RateDenominator <= 0 {
			return fmt.Errorf("config: price feed %d must have a positive rate", i)
		}
		if feed.PricingCurrency == feed.UnitCurrency {
			return fmt.Errorf("config: price feed %d pairs a currency with itself", i)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

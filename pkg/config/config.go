package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/explorer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

const (
	ConfigFileName = ".walletunity.json"
	EnvPrefix      = "walletunity"
)

// AddressConfig holds configuration for a monitored address.
type AddressConfig struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// ChainConfig overrides the registry defaults of one chain.
type ChainConfig struct {
	Chain       chains.Chain `json:"chain"`
	RPCURLs     []string     `json:"rpc_urls,omitempty"`
	ExplorerAPI string       `json:"explorer_api,omitempty"`
	APIKey      string       `json:"api_key,omitempty"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	PriceBaseURL           string `json:"price_base_url,omitempty"`
	AttestationBaseURL     string `json:"attestation_base_url,omitempty"`
	PollIntervalSeconds    int    `json:"poll_interval_seconds"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	PriceCacheSeconds      int    `json:"price_cache_seconds"`
	FiatDecimals           int    `json:"fiat_decimals"`
	TokenDecimals          int    `json:"token_decimals"`
	LogLevel               string `json:"log_level,omitempty"`
}

type Config struct {
	Addresses     []AddressConfig `json:"addresses"`
	Chains        []ChainConfig   `json:"chains"`
	SelectedChain chains.Chain    `json:"selected_chain,omitempty"`
	GlobalConfig
}

// env lists the WALLETUNITY_* overrides.
type env struct {
	ETHAPIKey          string        `envconfig:"ETH_API_KEY"`
	AVAXAPIKey         string        `envconfig:"AVAX_API_KEY"`
	OPAPIKey           string        `envconfig:"OP_API_KEY"`
	ARBAPIKey          string        `envconfig:"ARB_API_KEY"`
	PriceBaseURL       string        `envconfig:"PRICE_BASE_URL"`
	AttestationBaseURL string        `envconfig:"ATTESTATION_BASE_URL"`
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL"`
	LogLevel           string        `envconfig:"LOG_LEVEL"`
	Addresses          []string      `envconfig:"ADDRESSES"`
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		PollIntervalSeconds:    5,
		RefreshIntervalSeconds: 30,
		PriceCacheSeconds:      60,
		FiatDecimals:           2,
		TokenDecimals:          4,
		LogLevel:               "info",
	}
}

func Default() Config {
	return Config{Addresses: []AddressConfig{}, GlobalConfig: DefaultGlobalConfig()}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadConfigFromFile reads path. A missing file yields the defaults.
func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Addresses json.RawMessage `json:"addresses"`
		Chains    []ChainConfig   `json:"chains"`
		Selected  chains.Chain    `json:"selected_chain"`
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	// Fields missing from the file keep their defaults.
	if err := json.Unmarshal(data, &cfg.GlobalConfig); err != nil {
		return Config{}, err
	}
	cfg.Chains = raw.Chains
	cfg.SelectedChain = raw.Selected

	if len(raw.Addresses) > 0 {
		if err := json.Unmarshal(raw.Addresses, &cfg.Addresses); err != nil {
			cfg.Addresses = nil
			// Plain string list
			var strAddrs []string
			if err2 := json.Unmarshal(raw.Addresses, &strAddrs); err2 != nil {
				return Config{}, fmt.Errorf("addresses: %w", err)
			}
			for _, a := range strAddrs {
				cfg.Addresses = append(cfg.Addresses, AddressConfig{Address: a})
			}
		}
	}

	for i, c := range cfg.Chains {
		parsed, err := chains.ParseChain(string(c.Chain))
		if err != nil {
			return Config{}, fmt.Errorf("chains[%d]: %w", i, err)
		}
		cfg.Chains[i].Chain = parsed
	}
	return cfg, nil
}

// ApplyEnv overlays the WALLETUNITY_* environment variables.
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	keys := map[chains.Chain]string{
		chains.Ethereum:  e.ETHAPIKey,
		chains.Avalanche: e.AVAXAPIKey,
		chains.Optimism:  e.OPAPIKey,
		chains.Arbitrum:  e.ARBAPIKey,
	}
	for _, chain := range chains.All() {
		if key := keys[chain]; key != "" {
			c.chain(chain).APIKey = key
		}
	}
	if e.PriceBaseURL != "" {
		c.PriceBaseURL = e.PriceBaseURL
	}
	if e.AttestationBaseURL != "" {
		c.AttestationBaseURL = e.AttestationBaseURL
	}
	if e.PollInterval > 0 {
		c.PollIntervalSeconds = int(e.PollInterval.Round(time.Second) / time.Second)
		if c.PollIntervalSeconds == 0 {
			c.PollIntervalSeconds = 1
		}
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	for _, a := range e.Addresses {
		c.AddAddress(a, "")
	}
	return nil
}

// chain returns the override entry for chain, adding an empty one if needed.
func (c *Config) chain(chain chains.Chain) *ChainConfig {
	for i := range c.Chains {
		if c.Chains[i].Chain == chain {
			return &c.Chains[i]
		}
	}
	c.Chains = append(c.Chains, ChainConfig{Chain: chain})
	return &c.Chains[len(c.Chains)-1]
}

// AddAddress appends address unless it is already listed.
func (c *Config) AddAddress(address, name string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	for _, a := range c.Addresses {
		if strings.EqualFold(a.Address, address) {
			return false
		}
	}
	c.Addresses = append(c.Addresses, AddressConfig{Address: address, Name: name})
	return true
}

// Chain returns the effective settings of chain: overrides on top of the
// registry defaults.
func (c Config) Chain(chain chains.Chain) ChainConfig {
	out := ChainConfig{Chain: chain}
	if info, err := chains.Info(chain); err == nil {
		out.RPCURLs = info.RPCURLs
		out.ExplorerAPI = info.ExplorerAPI
	}
	for _, o := range c.Chains {
		if o.Chain != chain {
			continue
		}
		if len(o.RPCURLs) > 0 {
			out.RPCURLs = o.RPCURLs
		}
		if o.ExplorerAPI != "" {
			out.ExplorerAPI = o.ExplorerAPI
		}
		out.APIKey = o.APIKey
	}
	return out
}

func (c Config) Endpoints() map[chains.Chain]explorer.Endpoint {
	out := make(map[chains.Chain]explorer.Endpoint)
	for _, chain := range chains.All() {
		cc := c.Chain(chain)
		out[chain] = explorer.Endpoint{BaseURL: cc.ExplorerAPI, APIKey: cc.APIKey}
	}
	return out
}

func (c Config) RPCURLs() map[chains.Chain][]string {
	out := make(map[chains.Chain][]string)
	for _, chain := range chains.All() {
		out[chain] = c.Chain(chain).RPCURLs
	}
	return out
}

func (c Config) AddressList() []string {
	out := make([]string, 0, len(c.Addresses))
	for _, a := range c.Addresses {
		out = append(out, a.Address)
	}
	return out
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func (g GlobalConfig) PollInterval() time.Duration    { return seconds(g.PollIntervalSeconds, 5) }
func (g GlobalConfig) RefreshInterval() time.Duration { return seconds(g.RefreshIntervalSeconds, 30) }

// PriceCacheTTL of zero disables the price cache.
func (g GlobalConfig) PriceCacheTTL() time.Duration {
	if g.PriceCacheSeconds < 0 {
		return 0
	}
	return time.Duration(g.PriceCacheSeconds) * time.Second
}

// Validate checks what SaveConfig refuses to write.
func (c Config) Validate() error {
	for i, a := range c.Addresses {
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("validation failed: address at index %d (%q) is not a hex address", i, a.Address)
		}
	}
	seen := make(map[chains.Chain]bool)
	for i, cc := range c.Chains {
		if _, err := chains.Info(cc.Chain); err != nil {
			return fmt.Errorf("validation failed: chain at index %d: %w", i, err)
		}
		if seen[cc.Chain] {
			return fmt.Errorf("validation failed: chain %s is configured twice", cc.Chain)
		}
		seen[cc.Chain] = true
		for _, u := range cc.RPCURLs {
			if strings.TrimSpace(u) == "" {
				return fmt.Errorf("validation failed: chain %s has an empty RPC URL", cc.Chain)
			}
		}
	}
	if c.SelectedChain != "" {
		if _, err := chains.Info(c.SelectedChain); err != nil {
			return fmt.Errorf("validation failed: selected chain: %w", err)
		}
	}
	if c.FiatDecimals < 0 || c.TokenDecimals < 0 {
		return fmt.Errorf("validation failed: decimals must not be negative")
	}
	return nil
}

func SaveConfig(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}

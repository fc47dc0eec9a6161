// Package config is the typed agent configuration. Loading lives in the
// command's config package; this one only defines shape, defaults and checks.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantumauth-io/quantum-swap-agent/internal/aggregator"
	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
	"github.com/quantumauth-io/quantum-swap-agent/internal/chains"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/txsender"
	apihttp "github.com/quantumauth-io/quantum-swap-agent/internal/http"
	"github.com/quantumauth-io/quantum-swap-agent/internal/notify"
	"github.com/quantumauth-io/quantum-swap-agent/internal/pricefeed"
	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/swap"
)

type AgentSettings struct {
	Network            string        `mapstructure:"network"`
	PreferredRPC       string        `mapstructure:"preferredRpc"`
	HeaderRefresh      time.Duration `mapstructure:"headerRefresh"`
	BalanceConcurrency int           `mapstructure:"balanceConcurrency"`
	DecimalsCacheSize  int           `mapstructure:"decimalsCacheSize"`
	// KeystorePath empty uses the default config directory.
	KeystorePath string `mapstructure:"keystorePath"`
	// VerifyAssets checks configured tokens against their contracts at startup.
	VerifyAssets bool `mapstructure:"verifyAssets"`
}

type RedisSettings struct {
	Addr     string        `mapstructure:"addr"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Password string        `mapstructure:"-"`
}

type PriceFeedSettings struct {
	pricefeed.Config `mapstructure:",squash"`
	// Redis is optional; an empty Addr disables the series cache.
	Redis RedisSettings `mapstructure:"redis"`
}

type NotifySettings struct {
	notify.QueueConfig `mapstructure:",squash"`
	Log                bool                  `mapstructure:"log"`
	Telegram           notify.TelegramConfig `mapstructure:"telegram"`
	AMQP               notify.AMQPConfig     `mapstructure:"amqp"`
}

// Secrets never come from config files.
type Secrets struct {
	InfuraAPIKey     string
	AggregatorAPIKey string
	PriceFeedAPIKey  string
	PrivateKey       string
	KeystorePassword string
	TelegramToken    string
	HTTPToken        string
	RedisPassword    string
}

type Config struct {
	Agent      AgentSettings          `mapstructure:"agent"`
	HTTP       apihttp.Config         `mapstructure:"http"`
	Chains     chains.AllChainsConfig `mapstructure:"chains"`
	Assets     []assets.AssetConfig   `mapstructure:"assets"`
	Sizing     sizing.Config          `mapstructure:"sizing"`
	Swap       swap.Config            `mapstructure:"swap"`
	Signer     txsender.Config        `mapstructure:"signer"`
	Aggregator aggregator.Config      `mapstructure:"aggregator"`
	PriceFeed  PriceFeedSettings      `mapstructure:"pricefeed"`
	Notify     NotifySettings         `mapstructure:"notify"`

	Secrets Secrets `mapstructure:"-"`
}

// Default is the baseline every loaded file is merged over.
func Default() Config {
	return Config{
		Agent: AgentSettings{
			Network:            "mainnet",
			HeaderRefresh:      12 * time.Second,
			BalanceConcurrency: 4,
			DecimalsCacheSize:  256,
		},
		HTTP: apihttp.Config{
			Host:         "127.0.0.1",
			Port:         "6180",
			LoopbackOnly: true,
			ReadTimeout:  10 * time.Second,
		},
		Sizing: sizing.DefaultConfig(),
		Swap:   swap.DefaultConfig(),
		PriceFeed: PriceFeedSettings{
			Redis: RedisSettings{TTL: time.Hour},
		},
	}
}

// ApplySecrets copies secrets into the component configs that need them.
func (c *Config) ApplySecrets() {
	c.Aggregator.APIKey = c.Secrets.AggregatorAPIKey
	c.PriceFeed.APIKey = c.Secrets.PriceFeedAPIKey
	c.Notify.Telegram.Token = c.Secrets.TelegramToken
	c.HTTP.APIToken = c.Secrets.HTTPToken
	c.PriceFeed.Redis.Password = c.Secrets.RedisPassword
}

// Validate checks everything that can be checked without the network.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.Network) == "" {
		return fmt.Errorf("agent.network is required")
	}
	if len(c.Chains.Networks) == 0 {
		return fmt.Errorf("chains.networks is empty")
	}
	net, ok := c.lookupNetwork(c.Agent.Network)
	if !ok {
		return fmt.Errorf("agent.network %q is not configured", c.Agent.Network)
	}
	if net.ChainID == 0 {
		return fmt.Errorf("network %q has no chainId", c.Agent.Network)
	}
	if len(net.RPCs) == 0 {
		return fmt.Errorf("network %q has no rpcs", c.Agent.Network)
	}

	if _, err := assets.NewRegistry(c.Assets); err != nil {
		return fmt.Errorf("assets: %w", err)
	}

	s := c.Sizing
	if s.TargetVolatility <= 0 || s.VolatilityFloor <= 0 || s.LookbackDays < 2 {
		return fmt.Errorf("sizing: targetVolatility, volatilityFloor must be > 0 and lookbackDays >= 2")
	}
	if c.Swap.SlippageBps == 0 || c.Swap.SlippageBps > 5000 {
		return fmt.Errorf("swap.slippageBps %d outside 1..5000", c.Swap.SlippageBps)
	}
	if c.Secrets.AggregatorAPIKey == "" {
		return fmt.Errorf("ONEINCH_API_KEY is not set")
	}
	if c.Notify.Telegram.ChatID != "" && c.Secrets.TelegramToken == "" {
		return fmt.Errorf("notify.telegram.chatId is set but TELEGRAM_BOT_TOKEN is not")
	}
	return nil
}

func (c *Config) lookupNetwork(name string) (chains.NetworkConfig, bool) {
	for k, v := range c.Chains.Networks {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return chains.NetworkConfig{}, false
}

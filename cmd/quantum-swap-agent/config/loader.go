package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/viper"

	"github.com/quantumauth-io/quantum-swap-agent/internal/chains"
	"github.com/quantumauth-io/quantum-swap-agent/internal/config"
	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
)

const (
	EnvInfuraAPIKey     = "INFURA_API_KEY"
	EnvAggregatorAPIKey = "ONEINCH_API_KEY"
	EnvPriceFeedAPIKey  = "COINGECKO_API_KEY"
	EnvPrivateKey       = "SWAP_PRIVATE_KEY"
	EnvKeystorePassword = "SWAP_KEYSTORE_PASSWORD"
	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
	EnvHTTPToken        = "SWAP_AGENT_API_TOKEN"
	EnvRedisPassword    = "SWAP_AGENT_REDIS_PASSWORD"

	envPrefix = "SWAP_AGENT"
)

func infuraRPC(chain string, key string) string {
	return fmt.Sprintf("https://%s.infura.io/v3/%s", chain, key)
}

func Load() (*config.Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}
	return LoadFrom(paths)
}

// LoadFrom layers, lowest first: built-in defaults, the embedded config.yaml,
// the first config.yaml found in paths, SWAP_AGENT_* env overrides. Secrets
// only come from the environment (a .env file in paths is loaded first).
func LoadFrom(paths []string) (*config.Config, error) {
	loadDotEnv(paths)

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(EmbeddedConfigYAML)); err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}

	for _, dir := range paths {
		file := filepath.Join(dir, constants.ConfigFile+".yaml")
		if _, err := os.Stat(file); err != nil {
			continue
		}
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s: %w", file, err)
		}
		log.Info("loaded config file", "path", file)
		break
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := config.Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Chains.Normalize()

	cfg.Secrets = secretsFromEnv()
	if cfg.Secrets.InfuraAPIKey != "" {
		if err := InjectInfuraKey(&cfg.Chains, cfg.Secrets.InfuraAPIKey); err != nil {
			return nil, err
		}
	}
	dropEmptyRPCs(&cfg.Chains)
	cfg.ApplySecrets()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(paths []string) {
	for _, dir := range paths {
		file := filepath.Join(dir, ".env")
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// existing environment wins over .env
		if err := godotenv.Load(file); err != nil {
			log.Warn("failed to load .env", "path", file, "error", err)
		}
		return
	}
}

func secretsFromEnv() config.Secrets {
	get := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return config.Secrets{
		InfuraAPIKey:     get(EnvInfuraAPIKey),
		AggregatorAPIKey: get(EnvAggregatorAPIKey),
		PriceFeedAPIKey:  get(EnvPriceFeedAPIKey),
		PrivateKey:       get(EnvPrivateKey),
		KeystorePassword: os.Getenv(EnvKeystorePassword),
		TelegramToken:    get(EnvTelegramToken),
		HTTPToken:        get(EnvHTTPToken),
		RedisPassword:    os.Getenv(EnvRedisPassword),
	}
}

// InjectInfuraKey fills every RPC named Infura with the network's Infura URL.
func InjectInfuraKey(c *chains.AllChainsConfig, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("infura api key is empty")
	}

	for netName, net := range c.Networks {
		rpcURL := infuraRPC(netName, key)

		if len(net.RPCs) == 0 {
			net.RPCs = []chains.RPC{{Name: "Infura", URL: rpcURL}}
		} else {
			for i := range net.RPCs {
				if strings.EqualFold(net.RPCs[i].Name, "infura") {
					net.RPCs[i].URL = rpcURL
				}
			}
		}

		// map values are copies
		c.Networks[netName] = net
	}
	return nil
}

// dropEmptyRPCs removes placeholder entries left without a URL.
func dropEmptyRPCs(c *chains.AllChainsConfig) {
	for name, net := range c.Networks {
		kept := net.RPCs[:0]
		for _, r := range net.RPCs {
			if strings.TrimSpace(r.URL) != "" {
				kept = append(kept, r)
			}
		}
		net.RPCs = kept
		c.Networks[name] = net
	}
}

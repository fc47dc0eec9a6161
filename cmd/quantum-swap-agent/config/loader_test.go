package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/chains"
)

func clearSecrets(t *testing.T) {
	for _, k := range []string{EnvInfuraAPIKey, EnvAggregatorAPIKey, EnvPriceFeedAPIKey, EnvPrivateKey,
		EnvKeystorePassword, EnvTelegramToken, EnvHTTPToken, EnvRedisPassword} {
		t.Setenv(k, "")
	}
}

func TestLoadEmbeddedWithSecrets(t *testing.T) {
	clearSecrets(t)
	t.Setenv(EnvInfuraAPIKey, "0123456789abcdef0123456789abcdef")
	t.Setenv(EnvAggregatorAPIKey, "agg-key")
	t.Setenv(EnvTelegramToken, "123:abc")

	cfg, err := LoadFrom([]string{t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "mainnet", cfg.Agent.Network)
	assert.Equal(t, uint64(1), cfg.Chains.Networks["mainnet"].ChainID)
	assert.Equal(t, "https://mainnet.infura.io/v3/0123456789abcdef0123456789abcdef", cfg.Chains.Networks["mainnet"].RPCs[0].URL)
	assert.Equal(t, "mainnet", cfg.Chains.Networks["mainnet"].Name)

	assert.Len(t, cfg.Assets, 4)
	assert.True(t, cfg.Assets[0].Native)
	assert.Equal(t, "ethereum", cfg.Assets[0].PriceID)

	assert.Equal(t, 365, cfg.Sizing.LookbackDays)
	assert.Equal(t, uint32(100), cfg.Swap.SlippageBps)
	assert.Equal(t, 3*time.Minute, cfg.Signer.ConfirmTimeout)
	assert.Equal(t, "agg-key", cfg.Aggregator.APIKey)
	assert.Equal(t, "123:abc", cfg.Notify.Telegram.Token)
	assert.Equal(t, 30*time.Second, cfg.Notify.DeliveryTimeout)
	assert.Equal(t, time.Hour, cfg.PriceFeed.Redis.TTL)
}

func TestLoadMergesDiskConfigAndEnvOverrides(t *testing.T) {
	clearSecrets(t)
	t.Setenv(EnvAggregatorAPIKey, "agg-key")
	t.Setenv("SWAP_AGENT_SWAP_SLIPPAGEBPS", "250")

	dir := t.TempDir()
	yaml := []byte(`
agent:
  network: sepolia
chains:
  networks:
    sepolia:
      rpcs:
        - name: Local
          url: http://127.0.0.1:8545
assets:
  - symbol: ETH
    native: true
    priceId: ethereum
  - symbol: USDC
    address: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"
    stable: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadFrom([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, "sepolia", cfg.Agent.Network)
	assert.Equal(t, uint64(11155111), cfg.Chains.Networks["sepolia"].ChainID)
	require.Len(t, cfg.Chains.Networks["sepolia"].RPCs, 1)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.Chains.Networks["sepolia"].RPCs[0].URL)
	assert.Len(t, cfg.Assets, 2)
	assert.Equal(t, uint32(250), cfg.Swap.SlippageBps)
}

func TestLoadDoesNotLeakBetweenCalls(t *testing.T) {
	clearSecrets(t)
	t.Setenv(EnvAggregatorAPIKey, "agg-key")
	t.Setenv(EnvInfuraAPIKey, "0123456789abcdef0123456789abcdef")

	dir := t.TempDir()
	yaml := []byte("agent:\n  network: sepolia\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := LoadFrom([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, "sepolia", cfg.Agent.Network)
	// a partial file keeps the embedded networks and assets
	assert.Equal(t, uint64(11155111), cfg.Chains.Networks["sepolia"].ChainID)
	assert.NotEmpty(t, cfg.Assets)

	cfg, err = LoadFrom([]string{t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Agent.Network)
}

func TestLoadDotEnv(t *testing.T) {
	clearSecrets(t)
	os.Unsetenv(EnvAggregatorAPIKey)
	os.Unsetenv(EnvInfuraAPIKey)
	t.Cleanup(func() {
		os.Unsetenv(EnvAggregatorAPIKey)
		os.Unsetenv(EnvInfuraAPIKey)
	})

	dir := t.TempDir()
	env := "ONEINCH_API_KEY=from-dotenv\nINFURA_API_KEY=abcdefabcdefabcdefabcdefabcdefab\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))

	cfg, err := LoadFrom([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Aggregator.APIKey)
}

func TestLoadFailsWithoutAggregatorKey(t *testing.T) {
	clearSecrets(t)
	t.Setenv(EnvInfuraAPIKey, "0123456789abcdef0123456789abcdef")

	_, err := LoadFrom([]string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAggregatorAPIKey)
}

func TestInjectInfuraKey(t *testing.T) {
	c := &chains.AllChainsConfig{Networks: map[string]chains.NetworkConfig{
		"mainnet": {RPCs: []chains.RPC{{Name: "infura"}, {Name: "Other", URL: "https://rpc.example"}}},
		"sepolia": {},
	}}
	require.NoError(t, InjectInfuraKey(c, "k"))

	assert.Equal(t, "https://mainnet.infura.io/v3/k", c.Networks["mainnet"].RPCs[0].URL)
	assert.Equal(t, "https://rpc.example", c.Networks["mainnet"].RPCs[1].URL)
	assert.Equal(t, "https://sepolia.infura.io/v3/k", c.Networks["sepolia"].RPCs[0].URL)
	assert.Error(t, InjectInfuraKey(c, " "))
}

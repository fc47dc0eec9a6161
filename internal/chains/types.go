package chains

type AllChainsConfig struct {
	Networks map[string]NetworkConfig `json:"networks" yaml:"networks" mapstructure:"networks"`
}

// NetworkConfig describes a network and its RPC endpoints.
type NetworkConfig struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	ChainID  uint64 `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	RPCs     []RPC  `json:"rpcs" yaml:"rpcs" mapstructure:"rpcs"`
	Explorer string `json:"explorer" yaml:"explorer" mapstructure:"explorer"`
}

// RPC is one HTTP node endpoint.
type RPC struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	URL  string `json:"url" yaml:"url" mapstructure:"url"`
}

func (mc *AllChainsConfig) Normalize() {
	if mc == nil {
		return
	}
	for name, n := range mc.Networks {
		n.Name = name
		mc.Networks[name] = n
	}
}

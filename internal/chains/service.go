package chains

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

const defaultHeaderRefresh = 12 * time.Second

type ChainConfig struct {
	Chains           *AllChainsConfig
	Network          string
	PreferredRPCName string
	HeaderRefresh    time.Duration
}

type ChainClients struct {
	HTTP *BlockchainClientWithCache
}

type ResolvedChain struct {
	NetworkName string
	ChainID     uint64
	Explorer    string

	RPCName string
	URL     string
}

// ExplorerTxURL links a transaction hash on the network's block explorer.
func (r ResolvedChain) ExplorerTxURL(hash string) string {
	if r.Explorer == "" || hash == "" {
		return ""
	}
	return strings.TrimRight(r.Explorer, "/") + "/tx/" + hash
}

// Service owns the node connection for the configured network.
type Service struct {
	cfg     ChainConfig
	network ResolvedChain

	mu      sync.Mutex
	clients *ChainClients
}

func NewService(ctx context.Context, cfg ChainConfig) (*Service, error) {
	if cfg.Chains == nil {
		return nil, errors.New("chains config is nil")
	}
	if strings.TrimSpace(cfg.Network) == "" {
		return nil, errors.New("network is empty")
	}
	if cfg.HeaderRefresh <= 0 {
		cfg.HeaderRefresh = defaultHeaderRefresh
	}

	s := &Service{cfg: cfg}

	resolved, err := s.ResolveNetworkByName(cfg.Network)
	if err != nil {
		return nil, err
	}
	s.network = resolved

	clients, err := dialChainClients(ctx, resolved, cfg.HeaderRefresh)
	if err != nil {
		return nil, err
	}
	s.clients = clients

	if err := s.verifyChainID(ctx); err != nil {
		safeCloseClients(clients)
		return nil, err
	}

	log.Info("connected to network",
		"network", resolved.NetworkName,
		"chainId", resolved.ChainID,
		"rpc", resolved.RPCName,
	)
	return s, nil
}

// Node returns the node client used for reads and transaction submission.
func (s *Service) Node() (*BlockchainClientWithCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients == nil || s.clients.HTTP == nil {
		return nil, errors.New("no active http client")
	}
	return s.clients.HTTP, nil
}

func (s *Service) Network() ResolvedChain { return s.network }

func (s *Service) ChainID() uint64 { return s.network.ChainID }

// verifyChainID refuses to run against a node that serves a different chain than configured.
func (s *Service) verifyChainID(ctx context.Context) error {
	client, err := s.Node()
	if err != nil {
		return err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if id.Uint64() != s.network.ChainID {
		return fmt.Errorf("node chain id %s does not match configured %d for %q", id, s.network.ChainID, s.network.NetworkName)
	}
	return nil
}

// Close closes the node clients (call on shutdown).
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	safeCloseClients(s.clients)
	s.clients = nil
	return nil
}

func dialChainClients(ctx context.Context, chain ResolvedChain, refresh time.Duration) (*ChainClients, error) {
	if strings.TrimSpace(chain.URL) == "" {
		return nil, errors.New("invalid chain rpc config (missing url)")
	}

	httpClient, err := NewBlockchainClientWithCache(ctx, chain.URL, refresh)
	if err != nil {
		return nil, fmt.Errorf("dial http %q: %w", chain.NetworkName, err)
	}

	return &ChainClients{HTTP: httpClient}, nil
}

func safeCloseClients(c *ChainClients) {
	if c == nil {
		return
	}
	if c.HTTP != nil {
		c.HTTP.Close()
	}
}

func (s *Service) ResolveNetworkByName(networkName string) (ResolvedChain, error) {
	networkName = strings.TrimSpace(networkName)
	if networkName == "" {
		return ResolvedChain{}, errors.New("network name is empty")
	}

	for name, network := range s.cfg.Chains.Networks {
		if strings.EqualFold(name, networkName) {
			return s.resolveFromNetworkConfig(name, network)
		}
	}
	return ResolvedChain{}, fmt.Errorf("unknown network %q", networkName)
}

func (s *Service) resolveFromNetworkConfig(networkName string, network NetworkConfig) (ResolvedChain, error) {
	// pick RPC by preferred name; otherwise first
	var selectedRPC *RPC

	if preferred := strings.TrimSpace(s.cfg.PreferredRPCName); preferred != "" {
		for i := range network.RPCs {
			if strings.EqualFold(strings.TrimSpace(network.RPCs[i].Name), preferred) {
				selectedRPC = &network.RPCs[i]
				break
			}
		}
	}
	if selectedRPC == nil {
		if len(network.RPCs) == 0 {
			return ResolvedChain{}, fmt.Errorf("network %q has no RPCs configured", networkName)
		}
		selectedRPC = &network.RPCs[0]
	}

	if strings.TrimSpace(selectedRPC.URL) == "" {
		return ResolvedChain{}, fmt.Errorf("network %q rpc %q url is empty", networkName, selectedRPC.Name)
	}
	if network.ChainID == 0 {
		return ResolvedChain{}, fmt.Errorf("network %q has no chainId", networkName)
	}

	return ResolvedChain{
		NetworkName: networkName,
		ChainID:     network.ChainID,
		Explorer:    network.Explorer,
		RPCName:     selectedRPC.Name,
		URL:         selectedRPC.URL,
	}, nil
}

// redactURL drops the path and query, which is where providers put API keys.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}

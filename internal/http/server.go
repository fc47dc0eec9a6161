// Package http exposes the agent over a small JSON API: health, balances,
// swap trigger and prometheus metrics.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
	"github.com/quantumauth-io/quantum-swap-agent/internal/trader"
)

type Trader interface {
	Balances(ctx context.Context) (assets.Snapshot, error)
	Trigger(ctx context.Context, req trader.TradeRequest) (trader.TradeResult, error)
}

type Config struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	LoopbackOnly   bool          `mapstructure:"loopbackOnly"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	// APIToken guards /balances and /swap when set.
	APIToken string `mapstructure:"-"`
}

// Identity is static information reported by /healthz.
type Identity struct {
	Network string
	ChainID uint64
	Wallet  string
}

type Server struct {
	cfg            Config
	trader         Trader
	identity       Identity
	mux            *http.ServeMux
	allowedOrigins map[string]struct{}
}

func NewServer(cfg Config, t Trader, identity Identity) *Server {
	s := &Server{
		cfg:      cfg,
		trader:   t,
		identity: identity,
		mux:      http.NewServeMux(),
	}

	if len(cfg.AllowedOrigins) > 0 {
		s.allowedOrigins = make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, o := range cfg.AllowedOrigins {
			o = normalizeOrigin(o)
			if o == "" {
				continue
			}
			s.allowedOrigins[o] = struct{}{}
		}
	}

	s.mux.HandleFunc("/healthz", s.withLoopbackOnly(requireMethod(http.MethodGet, s.handleHealth)))
	s.mux.Handle("/metrics", s.withLoopbackOnly(promhttp.Handler().ServeHTTP))
	s.mux.HandleFunc("/balances", s.withAgentGuards("GET,OPTIONS", requireMethod(http.MethodGet, s.handleBalances)))
	s.mux.HandleFunc("/swap", s.withAgentGuards("POST,OPTIONS", requireMethod(http.MethodPost, s.handleSwap)))
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

func (s *Server) withCORS(policy corsPolicy, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originRaw := r.Header.Get("Origin")
		if originRaw != "" {
			origin := normalizeOrigin(originRaw)
			if origin == "" {
				http.Error(w, HTTPErrorForbiddenOriginText, http.StatusForbidden)
				return
			}

			if policy.allowedOrigins != nil {
				if _, ok := policy.allowedOrigins[origin]; !ok {
					http.Error(w, HTTPErrorForbiddenOriginText, http.StatusForbidden)
					return
				}
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			if policy.allowMethods != "" {
				w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
			}

			if policy.allowHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
			} else if reqHdrs := r.Header.Get("Access-Control-Request-Headers"); reqHdrs != "" {
				w.Header().Set("Access-Control-Allow-Headers", reqHdrs)
			}

			if policy.maxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", policy.maxAge))
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (s *Server) withLoopbackOnly(next http.HandlerFunc) http.HandlerFunc {
	if !s.cfg.LoopbackOnly {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !isLoopbackRequest(r) {
			http.Error(w, HTTPErrorForbiddenText, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// withAPIToken requires "Authorization: Bearer <token>" when a token is configured.
func (s *Server) withAPIToken(next http.HandlerFunc) http.HandlerFunc {
	if s.cfg.APIToken == "" {
		return next
	}
	want := []byte(s.cfg.APIToken)
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get(authorizationHeader), bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			http.Error(w, HTTPErrorUnauthorizedText, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// withAgentGuards stacks CORS, the loopback check and the API token.
func (s *Server) withAgentGuards(methods string, next http.HandlerFunc) http.HandlerFunc {
	policy := corsPolicy{
		allowedOrigins: s.allowedOrigins,
		allowMethods:   methods,
		maxAge:         600,
	}
	return s.withCORS(policy, s.withLoopbackOnly(s.withAPIToken(next)))
}

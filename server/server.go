package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/brokerauth/access"
	"github.com/jrsteele09/brokerauth/exchange/broker"
	"github.com/jrsteele09/brokerauth/exchange/google"
	"github.com/jrsteele09/brokerauth/exchange/oauthstate"
	"github.com/jrsteele09/brokerauth/internal/config"
	"github.com/jrsteele09/brokerauth/sessions"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Sessions *sessions.Manager
	Registry *access.Registry
	Policy   *access.Policy
	Broker   *broker.Client
	Google   *google.Client
	State    *oauthstate.Issuer
	// Gatherer backs the /metrics endpoint. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config

	sessions *sessions.Manager
	registry *access.Registry
	policy   *access.Policy
	broker   *broker.Client
	google   *google.Client
	state    *oauthstate.Issuer
	gatherer prometheus.Gatherer
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Sessions == nil || deps.Registry == nil || deps.Policy == nil {
		return nil, errors.New("[Server New] sessions, registry and policy are required")
	}
	if deps.Broker == nil || deps.Google == nil {
		return nil, errors.New("[Server New] broker and google exchange clients are required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		sessions: deps.Sessions,
		registry: deps.Registry,
		policy:   deps.Policy,
		broker:   deps.Broker,
		google:   deps.Google,
		state:    deps.State,
		gatherer: deps.Gatherer,
	}

	s.initRoutes()
	s.handler = chi.Chain(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		s.CorsHandler(),
	).Handler(s.mux)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colouredMethod(method), path)
}

func colouredMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Token exchange
	s.RegisterRouteHandler("GET "+RouteBrokerLogin, ChainMiddleware(s.BrokerLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBrokerSession, ChainMiddleware(s.BrokerSessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGoogleLogin, ChainMiddleware(s.GoogleLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteGoogleSession, ChainMiddleware(s.GoogleSessionHandler(), s.APIMiddleware()...))

	// Session
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireWhitelisted())...))

	// Registry bootstrap (setup key, no session)
	s.RegisterRouteHandler("GET "+RouteAdminStatus, ChainMiddleware(s.AdminStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAdminBootstrap, ChainMiddleware(s.BootstrapHandler(), s.APIMiddleware()...))

	// Admin routes
	s.RegisterRouteHandler("POST "+RouteAdminPromote, ChainMiddleware(s.PromoteHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("POST "+RouteAdminDemote, ChainMiddleware(s.DemoteHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("GET "+RouteAdminList, ChainMiddleware(s.ListAdminsHandler(), s.APIMiddleware(s.RequireAdmin())...))

	s.RegisterRouteHandler("GET "+RouteWhitelist, ChainMiddleware(s.ListWhitelistHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("POST "+RouteWhitelist, ChainMiddleware(s.AddWhitelistHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("POST "+RouteWhitelistBulk, ChainMiddleware(s.BulkAddWhitelistHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("GET "+RouteWhitelistEntry, ChainMiddleware(s.CheckWhitelistHandler(), s.APIMiddleware(s.RequireAdmin())...))
	s.RegisterRouteHandler("DELETE "+RouteWhitelistEntry, ChainMiddleware(s.RemoveWhitelistHandler(), s.APIMiddleware(s.RequireAdmin())...))
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

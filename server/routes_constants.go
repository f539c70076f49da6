package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Auth Routes - Token exchange
	RouteBrokerLogin   = "/api/auth/broker/login"
	RouteBrokerSession = "/api/auth/broker/session"
	RouteGoogleLogin   = "/api/auth/google/login"
	RouteGoogleSession = "/api/auth/google/session"

	// Auth Routes - Session
	RouteLogout = "/api/auth/logout"
	RouteMe     = "/api/auth/me"

	// Admin Routes - Registry
	RouteAdminStatus    = "/api/admin/status"
	RouteAdminBootstrap = "/api/admin/bootstrap"
	RouteAdminPromote   = "/api/admin/promote"
	RouteAdminDemote    = "/api/admin/demote"
	RouteAdminList      = "/api/admin/admins"

	// Admin Routes - Whitelist
	RouteWhitelist      = "/api/admin/whitelist"
	RouteWhitelistBulk  = "/api/admin/whitelist/bulk"
	RouteWhitelistEntry = "/api/admin/whitelist/{id}"
)

// Request parameter names
const (
	ParamSessionToken = "session_token"
	ParamProvider     = "provider"
	ParamRedirectURI  = "redirect_uri"
)

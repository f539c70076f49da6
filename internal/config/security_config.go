package config

import (
	"errors"
)

type SecurityConfig interface {
	GetWhitelistEnabled() bool
	GetAdminBypass() bool
	GetInitialSetupKey() string
}

type Security struct{ source }

var _ SecurityConfig = Security{}

func (s Security) GetWhitelistEnabled() bool {
	return s.getBool("WHITELIST_ENABLED", true)
}

// GetAdminBypass is the emergency escape hatch for admin endpoints.
func (s Security) GetAdminBypass() bool {
	return s.getBool("ADMIN_BYPASS", false)
}

// GetInitialSetupKey returns the bootstrap secret, either in plain text or as a
// bcrypt hash.
func (s Security) GetInitialSetupKey() string {
	return s.get("INITIAL_SETUP_KEY", "")
}

// AccessPolicy holds the deployment-wide access switches. It is built once at
// startup and never re-read from the environment.
type AccessPolicy struct {
	WhitelistEnabled bool
	EmergencyBypass  bool
}

var ErrBypassOutsideDev = errors.New("ADMIN_BYPASS may only be enabled when ENV=DEV")

// NewAccessPolicy snapshots the access switches. The emergency bypass is
// refused outside development deployments.
func NewAccessPolicy(c Config) (AccessPolicy, error) {
	p := AccessPolicy{
		WhitelistEnabled: c.GetWhitelistEnabled(),
		EmergencyBypass:  c.GetAdminBypass(),
	}
	if p.EmergencyBypass && !IsDevelopment(c) {
		return AccessPolicy{}, ErrBypassOutsideDev
	}
	return p, nil
}

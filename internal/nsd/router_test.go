package nsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRouter_TypeAllowlist exercises scenario S5: a per-type allowlist entry
// routes to the modern engine even when the global modern flag is off, and
// an unlisted type still routes to legacy.
func TestRouter_TypeAllowlist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModernDiscoveryManagerEnabled = false
	cfg.TypeAllowlist = ParseTypeAllowlist("_foo._tcp:foo")

	dc := &StaticDeviceConfig{DiscoveryManagerTags: map[string]bool{"foo": true}}
	router := NewRouter(cfg, dc)

	assert.Equal(t, BackendModern, router.SelectForDiscover(false, "_foo._tcp"))
	assert.Equal(t, BackendLegacy, router.SelectForDiscover(false, "_bar._tcp"))
}

func TestRouter_ClientOptInAlwaysWins(t *testing.T) {
	cfg := DefaultConfig()
	router := NewRouter(cfg, nil)
	assert.Equal(t, BackendModern, router.SelectForDiscover(true, "_bar._tcp"))
}

func TestRouter_GlobalFlagRoutesEverything(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModernAdvertiserEnabled = true
	router := NewRouter(cfg, nil)
	assert.Equal(t, BackendModern, router.SelectForRegister(false, "_anything._tcp"))
}

func TestRegisterServiceCallbackBackend_AlwaysModern(t *testing.T) {
	assert.Equal(t, BackendModern, RegisterServiceCallbackBackend())
}

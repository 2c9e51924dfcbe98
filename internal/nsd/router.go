package nsd

// Router picks the backend for a given request, per spec.md §4.4's
// "Backend selection" rule. It is stateless over a Config/DeviceConfigSource
// pair, matching the "router returns the chosen implementation at accept
// time" design note.
type Router struct {
	config       *Config
	deviceConfig DeviceConfigSource
}

// NewRouter builds a Router over the given config and live device-config
// source.
func NewRouter(config *Config, deviceConfig DeviceConfigSource) *Router {
	return &Router{config: config, deviceConfig: deviceConfig}
}

// SelectForDiscover applies the discovery-manager flag.
func (r *Router) SelectForDiscover(clientWantsModern bool, serviceType string) Backend {
	return r.selectForTag(clientWantsModern, serviceType, r.config.ModernDiscoveryManagerEnabled, true)
}

// SelectForRegister applies the advertiser flag.
func (r *Router) SelectForRegister(clientWantsModern bool, serviceType string) Backend {
	return r.selectForTag(clientWantsModern, serviceType, r.config.ModernAdvertiserEnabled, false)
}

// SelectForResolve applies the discovery-manager flag (resolve shares the
// discovery-manager's allowlist in the original implementation).
func (r *Router) SelectForResolve(clientWantsModern bool, serviceType string) Backend {
	return r.selectForTag(clientWantsModern, serviceType, r.config.ModernDiscoveryManagerEnabled, true)
}

func (r *Router) selectForTag(clientWantsModern bool, serviceType string, globalFlag, discoveryManager bool) Backend {
	if clientWantsModern || globalFlag {
		return BackendModern
	}
	if r.typeAllowlisted(serviceType, discoveryManager) {
		return BackendModern
	}
	return BackendLegacy
}

// typeAllowlisted implements isTypeAllowlistedForJavaBackend: look up the
// tag for serviceType in the parsed allowlist, then check the per-tag flag
// for either the discovery-manager or advertiser namespace.
func (r *Router) typeAllowlisted(serviceType string, discoveryManager bool) bool {
	if r.deviceConfig == nil {
		return false
	}
	tag, ok := r.config.TypeAllowlist[serviceType]
	if !ok {
		return false
	}
	if discoveryManager {
		return r.deviceConfig.DiscoveryManagerAllowlistedForTag(tag)
	}
	return r.deviceConfig.AdvertiserAllowlistedForTag(tag)
}

// RegisterServiceCallbackBackend implements the always-modern rule for
// REGISTER_SERVICE_CALLBACK (§4.4's per-verb table).
func RegisterServiceCallbackBackend() Backend { return BackendModern }

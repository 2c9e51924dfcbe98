package nsd

import "unicode/utf8"

// handleEnabled implements the Enabled child state's per-verb contract
// table from §4.4. It returns false for the message kinds the Default
// parent always owns (REGISTER_CLIENT, UNREGISTER_CLIENT, client-channel
// death, DAEMON_CLEANUP, DAEMON_STARTUP, and the two lock-input updates)
// and for anything else it does not recognize, letting Process fall through
// to handleDefault.
func (m *Machine) handleEnabled(msg Message) bool {
	switch v := msg.(type) {
	case RegisterClientMsg, UnregisterClientMsg, ClientDeathMsg, DaemonStartupMsg, daemonCleanupTimerMsg:
		return false

	case DiscoverServicesMsg:
		m.onDiscoverServices(v)
		return true
	case StopDiscoveryMsg:
		m.onStopDiscovery(v)
		return true
	case RegisterServiceMsg:
		m.onRegisterService(v)
		return true
	case UnregisterServiceMsg:
		m.onUnregisterService(v)
		return true
	case ResolveServiceMsg:
		m.onResolveService(v)
		return true
	case StopResolutionMsg:
		m.onStopResolution(v)
		return true
	case RegisterServiceCallbackMsg:
		m.onRegisterServiceCallback(v)
		return true
	case UnregisterServiceCallbackMsg:
		m.onUnregisterServiceCallback(v)
		return true
	case RegisterOffloadEngineMsg:
		m.offload.Register(v.InterfaceName, v.CapabilityBits, v.TypeBits, v.Callback)
		return true
	case UnregisterOffloadEngineMsg:
		m.offload.Unregister(v.Callback)
		return true
	case LegacyEventMsg:
		m.onLegacyEvent(v.Event)
		return true
	case EngineEventMsg:
		m.onEngineEvent(v.Event)
		return true
	case WifiNetworksChangedMsg, ActiveUidsChangedMsg:
		return false

	default:
		return false
	}
}

func (m *Machine) onDiscoverServices(v DiscoverServicesMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	if c.AtQuota(m.config.MaxRequestsPerClient) {
		c.Callback.OnDiscoverServicesFailed(v.ListenerKey, FailureMaxLimit)
		c.Metrics.ReportDiscoveryFailed(c.UID, FailureMaxLimit)
		return
	}
	if _, ok := ParseServiceType(v.ServiceType); !ok {
		c.Callback.OnDiscoverServicesFailed(v.ListenerKey, FailureInternalError)
		c.Metrics.ReportDiscoveryFailed(c.UID, FailureInternalError)
		return
	}

	backend := m.router.SelectForDiscover(c.UsesModernBackend, v.ServiceType)
	txID := m.reg.NextTransactionID()

	var req *ClientRequest
	if backend == BackendModern {
		if err := m.startModernDiscover(txID, v.ServiceType, v.Network); err != nil {
			c.Callback.OnDiscoverServicesFailed(v.ListenerKey, FailureInternalError)
			c.Metrics.ReportDiscoveryFailed(c.UID, FailureInternalError)
			return
		}
		req = NewDiscoveryManagerRequest(txID, v.ListenerKey, nil, v.Network)
	} else {
		m.cancelDaemonCleanup()
		if m.legacy != nil {
			m.ensureLegacyStarted()
			_ = m.legacy.Discover(txID, v.ServiceType)
		}
		req = NewLegacyRequest(txID, v.ListenerKey, LegacyVerbDiscover)
	}

	_ = m.reg.StoreRequest(c.ID, req)
	if backend == BackendModern {
		m.lock.Reevaluate(m.reg)
	}
	c.Callback.OnDiscoverServicesStarted(v.ListenerKey)
	c.Metrics.ReportDiscoveryStarted(c.UID, txID)
}

func (m *Machine) startModernDiscover(txID int32, serviceType string, network RequestedNetwork) error {
	if m.engine == nil {
		return ErrInvalidServiceType
	}
	return m.engine.RegisterListener(txID, serviceType, ListenOptions{Network: network})
}

func (m *Machine) onStopDiscovery(v StopDiscoveryMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	req, found := c.RequestByListenerKey(v.ListenerKey)
	if !found {
		m.machineLog.Warnf("STOP_DISCOVERY for unknown listenerKey %d", v.ListenerKey)
		return
	}
	m.cancelRequestBackend(req)
	m.reg.RemoveRequestByListenerKey(c.ID, v.ListenerKey)
	if req.backend == BackendModern {
		m.lock.Reevaluate(m.reg)
	} else {
		m.maybeScheduleDaemonCleanup()
	}
	c.Callback.OnStopDiscoverySucceeded(v.ListenerKey)
	c.Metrics.ReportDiscoveryStopped(c.UID, req.transactionID, req.foundCount, req.lostCount, req.sentQueryCount)
}

func (m *Machine) onRegisterService(v RegisterServiceMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	if c.AtQuota(m.config.MaxRequestsPerClient) {
		c.Callback.OnRegisterServiceFailed(v.ListenerKey, FailureMaxLimit)
		c.Metrics.ReportRegistrationFailed(c.UID, FailureMaxLimit)
		return
	}
	if _, ok := ParseServiceType(v.Info.ServiceType); !ok {
		c.Callback.OnRegisterServiceFailed(v.ListenerKey, FailureInternalError)
		c.Metrics.ReportRegistrationFailed(c.UID, FailureInternalError)
		return
	}

	info := v.Info
	info.InstanceName = truncateUTF8(info.InstanceName, m.config.MaxInstanceNameBytes)

	backend := m.router.SelectForRegister(c.UsesModernBackend, info.ServiceType)
	txID := m.reg.NextTransactionID()

	if backend == BackendModern {
		if m.engine != nil {
			if err := m.engine.AddService(txID, info); err != nil {
				c.Callback.OnRegisterServiceFailed(v.ListenerKey, FailureInternalError)
				c.Metrics.ReportRegistrationFailed(c.UID, FailureInternalError)
				return
			}
		}
	} else {
		m.cancelDaemonCleanup()
		if m.legacy != nil {
			m.ensureLegacyStarted()
			_ = m.legacy.Register(txID, info)
		}
	}

	var req *ClientRequest
	if backend == BackendModern {
		req = NewAdvertiserRequest(txID, v.ListenerKey, v.Network)
	} else {
		req = NewLegacyRequest(txID, v.ListenerKey, LegacyVerbRegister)
	}
	_ = m.reg.StoreRequest(c.ID, req)
	if backend == BackendModern {
		m.lock.Reevaluate(m.reg)
	}
	// No immediate success: the spec requires awaiting the backend, which
	// arrives as an EngineEvent/LegacyEvent and is handled below.
}

func (m *Machine) onUnregisterService(v UnregisterServiceMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	req, found := c.RequestByListenerKey(v.ListenerKey)
	if !found {
		m.machineLog.Warnf("UNREGISTER_SERVICE for unknown listenerKey %d", v.ListenerKey)
		return
	}
	if req.backend == BackendModern && m.engine != nil {
		if err := m.engine.RemoveService(req.transactionID); err != nil {
			c.Callback.OnUnregisterServiceFailed(v.ListenerKey, FailureInternalError)
			return
		}
	} else if req.backend == BackendLegacy && m.legacy != nil {
		_ = m.legacy.StopOperation(req.transactionID)
	}
	m.reg.RemoveRequestByListenerKey(c.ID, v.ListenerKey)
	if req.backend == BackendModern {
		m.lock.Reevaluate(m.reg)
	} else {
		m.maybeScheduleDaemonCleanup()
	}
	c.Callback.OnUnregisterServiceSucceeded(v.ListenerKey)
	c.Metrics.ReportUnregistration(c.UID, req.transactionID)
}

func (m *Machine) onResolveService(v ResolveServiceMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	backend := m.router.SelectForResolve(c.UsesModernBackend, v.ServiceType)

	if backend == BackendLegacy && c.ResolvedServiceScratch() != nil {
		c.Callback.OnResolveServiceFailed(v.ListenerKey, FailureAlreadyActive)
		return
	}
	if _, ok := ParseServiceType(v.ServiceType); !ok {
		c.Callback.OnResolveServiceFailed(v.ListenerKey, FailureInternalError)
		return
	}

	txID := m.reg.NextTransactionID()

	if backend == BackendLegacy {
		c.SetResolvedServiceScratch(&ServiceInfo{})
		m.cancelDaemonCleanup()
		if m.legacy != nil {
			m.ensureLegacyStarted()
			_ = m.legacy.Resolve(txID, v.ServiceType, v.InstanceName)
		}
		req := NewLegacyRequest(txID, v.ListenerKey, LegacyVerbResolve)
		_ = m.reg.StoreRequest(c.ID, req)
		return
	}

	if m.engine != nil {
		_ = m.engine.RegisterListener(txID, v.ServiceType, ListenOptions{})
	}
	req := NewDiscoveryManagerRequest(txID, v.ListenerKey, nil, AnyNetwork)
	_ = m.reg.StoreRequest(c.ID, req)
	m.lock.Reevaluate(m.reg)
}

func (m *Machine) onStopResolution(v StopResolutionMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	req, found := c.RequestByListenerKey(v.ListenerKey)
	if !found {
		c.Callback.OnStopResolutionFailed(v.ListenerKey, FailureOperationNotRunning)
		return
	}
	m.cancelRequestBackend(req)
	m.reg.RemoveRequestByListenerKey(c.ID, v.ListenerKey)
	if req.Kind == RequestKindLegacy {
		c.SetResolvedServiceScratch(nil)
		m.maybeScheduleDaemonCleanup()
	} else {
		m.lock.Reevaluate(m.reg)
	}
	c.Callback.OnStopResolutionSucceeded(v.ListenerKey)
}

func (m *Machine) onRegisterServiceCallback(v RegisterServiceCallbackMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	if _, ok := ParseServiceType(v.ServiceType); !ok {
		c.Callback.OnServiceInfoCallbackUnregistrationFailed(v.ListenerKey, FailureBadParameters)
		return
	}

	txID := m.reg.NextTransactionID()
	if m.engine != nil {
		if err := m.engine.RegisterListener(txID, v.ServiceType, ListenOptions{Network: v.Network}); err != nil {
			c.Callback.OnServiceInfoCallbackUnregistrationFailed(v.ListenerKey, FailureInternalError)
			return
		}
	}
	req := NewDiscoveryManagerRequest(txID, v.ListenerKey, nil, v.Network)
	_ = m.reg.StoreRequest(c.ID, req)
	m.lock.Reevaluate(m.reg)
	c.Callback.OnServiceInfoCallbackRegistered(v.ListenerKey)
}

func (m *Machine) onUnregisterServiceCallback(v UnregisterServiceCallbackMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	req, found := c.RequestByListenerKey(v.ListenerKey)
	if !found || req.Kind != RequestKindDiscoveryManager {
		m.machineLog.Warnf("UNREGISTER_SERVICE_CALLBACK: other variant present or missing, ignoring")
		return
	}
	if m.engine != nil {
		m.engine.UnregisterListener(req.transactionID)
	}
	m.reg.RemoveRequestByListenerKey(c.ID, v.ListenerKey)
	m.lock.Reevaluate(m.reg)
	c.Callback.OnServiceInfoCallbackUnregistered(v.ListenerKey)
}

// truncateUTF8 truncates s to at most n bytes at a code-point boundary, per
// RFC 6763 §4.1.1's instance-name limit.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	b := []byte(s)[:n]
	for len(b) > 0 && !utf8.RuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	// Drop a final rune that got cut mid-sequence.
	if len(b) > 0 {
		if r, size := utf8.DecodeLastRune(b); r == utf8.RuneError && size <= 1 {
			b = b[:len(b)-1]
		}
	}
	return string(b)
}

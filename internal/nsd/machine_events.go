package nsd

// onLegacyEvent demuxes a legacy daemon event by transaction id and applies
// §4.4's per-kind handling, including the two-phase resolve chain.
func (m *Machine) onLegacyEvent(ev LegacyEvent) {
	switch ev.Kind {
	case LegacyEventServiceFound, LegacyEventServiceLost:
		m.onLegacyDiscoveryEvent(ev)
	case LegacyEventServiceRegistered:
		m.onLegacyRegistered(ev)
	case LegacyEventServiceResolved:
		m.onLegacyServiceResolved(ev)
	case LegacyEventGetAddrSuccess:
		m.onLegacyGetAddrSuccess(ev)
	case LegacyEventOperationFailed:
		m.onLegacyOperationFailed(ev)
	}
}

// onLegacyDiscoveryEvent implements §4.4's service-event filtering: discard
// events with no backing network or the dummy-net sentinel, otherwise
// rewrite the network per §4.6 and fan out found/lost.
func (m *Machine) onLegacyDiscoveryEvent(ev LegacyEvent) {
	if ev.NetID == 0 || ev.NetID == LocalNetworkID {
		return
	}
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}

	ifaceIdx := 0
	if m.iface != nil {
		if idx, ok := m.iface.InterfaceIndexForNetwork(ev.NetID); ok {
			ifaceIdx = idx
		}
	}

	info, ok := BuildResolvedServiceScratch(ev, m.machineLog.Warnf)
	if !ok {
		m.machineLog.Wtf("legacy discovery event name does not terminate in local: %q", ev.FullName)
		return
	}
	info.CallbackNetwork = AttributeCallbackNetwork(ev.NetID, ifaceIdx)

	switch ev.Kind {
	case LegacyEventServiceFound:
		req.recordServiceName(info.InstanceName, m.config.MaxServicesTrackedPerRequest)
		req.foundCount++
		c.Callback.OnServiceFound(req.clientRequestID, info)
	case LegacyEventServiceLost:
		req.lostCount++
		c.Callback.OnServiceLost(req.clientRequestID, info)
	}
}

func (m *Machine) onLegacyRegistered(ev LegacyEvent) {
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	info, _ := BuildResolvedServiceScratch(ev, m.machineLog.Warnf)
	c.Callback.OnRegisterServiceSucceeded(req.clientRequestID, info)
	c.Metrics.ReportRegistrationSucceeded(c.UID, ev.TransactionID)
}

// onLegacyServiceResolved implements step 2 of the two-phase resolve: parse
// the name, stash it in the scratch, stop/remove tx1, allocate tx2, issue
// getAddrInfo, and migrate the client's request to tx2 while preserving
// clientRequestId/startTime.
func (m *Machine) onLegacyServiceResolved(ev LegacyEvent) {
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	if m.legacy != nil {
		_ = m.legacy.StopOperation(ev.TransactionID)
	}

	scratch, ok := BuildResolvedServiceScratch(ev, m.machineLog.Warnf)
	if !ok {
		m.reg.RemoveRequestByListenerKey(c.ID, req.clientRequestID)
		c.Callback.OnResolveServiceFailed(req.clientRequestID, FailureInternalError)
		c.SetResolvedServiceScratch(nil)
		return
	}
	c.SetResolvedServiceScratch(&scratch)

	tx2 := m.reg.NextTransactionID()
	ifaceIdx := 0
	if m.iface != nil {
		if idx, ok := m.iface.InterfaceIndexForNetwork(ev.NetID); ok {
			ifaceIdx = idx
		}
	}
	if m.legacy != nil {
		_ = m.legacy.GetAddrInfo(tx2, scratch.InstanceName+"."+scratch.ServiceType+".local.", ifaceIdx)
	}

	_ = m.reg.MigrateTransaction(c.ID, ev.TransactionID, tx2, func(r *ClientRequest) {
		r.LegacyOp = LegacyVerbGetAddr
	})
}

// onLegacyGetAddrSuccess implements step 3: attach host/network on success,
// otherwise fail; either way stop/remove tx2 and clear the scratch.
func (m *Machine) onLegacyGetAddrSuccess(ev LegacyEvent) {
	clientID, req := m.reg.RemoveRequestByTransactionID(ev.TransactionID)
	c, ok := m.reg.Client(clientID)
	if !ok || req == nil {
		return
	}
	if m.legacy != nil {
		_ = m.legacy.StopOperation(ev.TransactionID)
	}

	ifaceIdx := 0
	if m.iface != nil {
		if idx, ok := m.iface.InterfaceIndexForNetwork(ev.NetID); ok {
			ifaceIdx = idx
		}
	}

	scratch := c.ResolvedServiceScratch()
	if scratch == nil {
		return
	}
	if ApplyGetAddrSuccess(scratch, ev, ifaceIdx) {
		c.Callback.OnResolveServiceSucceeded(req.clientRequestID, *scratch)
		c.Metrics.ReportResolveSucceeded(c.UID, ev.TransactionID, 0)
	} else {
		c.Callback.OnResolveServiceFailed(req.clientRequestID, FailureInternalError)
		c.Metrics.ReportResolveFailed(c.UID, FailureInternalError)
	}
	c.SetResolvedServiceScratch(nil)
	m.maybeScheduleDaemonCleanup()
}

// onLegacyOperationFailed implements step 4: any failure at either resolve
// phase stops/removes the current tx, clears the scratch, and emits the
// right failure to whichever verb was in flight.
func (m *Machine) onLegacyOperationFailed(ev LegacyEvent) {
	clientID, req := m.reg.RemoveRequestByTransactionID(ev.TransactionID)
	c, ok := m.reg.Client(clientID)
	if !ok || req == nil {
		return
	}

	switch req.LegacyOp {
	case LegacyVerbDiscover:
		c.Callback.OnDiscoverServicesFailed(req.clientRequestID, FailureInternalError)
		c.Metrics.ReportDiscoveryFailed(c.UID, FailureInternalError)
	case LegacyVerbRegister:
		c.Callback.OnRegisterServiceFailed(req.clientRequestID, FailureInternalError)
		c.Metrics.ReportRegistrationFailed(c.UID, FailureInternalError)
	case LegacyVerbResolve, LegacyVerbGetAddr:
		if m.legacy != nil {
			_ = m.legacy.StopOperation(ev.TransactionID)
		}
		c.Callback.OnResolveServiceFailed(req.clientRequestID, FailureInternalError)
		c.Metrics.ReportResolveFailed(c.UID, FailureInternalError)
		c.SetResolvedServiceScratch(nil)
	}
	m.maybeScheduleDaemonCleanup()
}

// onEngineEvent demuxes a modern-engine event by transaction id.
func (m *Machine) onEngineEvent(ev EngineEvent) {
	switch ev.Kind {
	case EngineEventServiceFound:
		m.onEngineFoundOrLost(ev, true)
	case EngineEventServiceLost:
		m.onEngineFoundOrLost(ev, false)
	case EngineEventServiceUpdated:
		m.onEngineUpdated(ev, true)
	case EngineEventServiceUpdatedLost:
		m.onEngineUpdated(ev, false)
	case EngineEventRegisterSucceeded:
		m.onEngineRegisterSucceeded(ev)
	case EngineEventRegisterFailed:
		m.onEngineRegisterFailed(ev)
	case EngineEventOffloadStartOrUpdate:
		m.offload.Dispatch(ev.Offload)
	case EngineEventOffloadStop:
		m.offload.Dispatch(ev.Offload)
		m.offload.RemoveFromSnapshot(ev.Offload.InterfaceName, ev.Offload.Payload)
	case EngineEventQuerySent:
		m.onEngineQuerySent(ev)
	}
}

// onEngineQuerySent implements DISCOVERY_QUERY_SENT_CALLBACK: bump the
// originating request's sentQueryCount, the only writer of that field.
func (m *Machine) onEngineQuerySent(ev EngineEvent) {
	_, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	req.sentQueryCount++
}

func (m *Machine) onEngineFoundOrLost(ev EngineEvent, found bool) {
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	if found {
		req.recordServiceName(ev.Service.InstanceName, m.config.MaxServicesTrackedPerRequest)
		req.foundCount++
		c.Callback.OnServiceFound(req.clientRequestID, ev.Service)
	} else {
		req.lostCount++
		c.Callback.OnServiceLost(req.clientRequestID, ev.Service)
	}
}

func (m *Machine) onEngineUpdated(ev EngineEvent, updated bool) {
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	if updated {
		c.Callback.OnServiceUpdated(req.clientRequestID, ev.Service)
	} else {
		c.Callback.OnServiceUpdatedLost(req.clientRequestID)
	}
}

func (m *Machine) onEngineRegisterSucceeded(ev EngineEvent) {
	c, req, ok := m.reg.RequestForTransaction(ev.TransactionID)
	if !ok || req == nil {
		return
	}
	c.Callback.OnRegisterServiceSucceeded(req.clientRequestID, ev.Service)
	c.Metrics.ReportRegistrationSucceeded(c.UID, ev.TransactionID)
}

func (m *Machine) onEngineRegisterFailed(ev EngineEvent) {
	clientID, req := m.reg.RemoveRequestByTransactionID(ev.TransactionID)
	c, ok := m.reg.Client(clientID)
	if !ok || req == nil {
		return
	}
	c.Callback.OnRegisterServiceFailed(req.clientRequestID, FailureInternalError)
	c.Metrics.ReportRegistrationFailed(c.UID, FailureInternalError)
	m.lock.Reevaluate(m.reg)
}

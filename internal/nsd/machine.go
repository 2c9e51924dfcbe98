package nsd

import (
	"context"
	"time"
)

// StateBroadcaster receives the sticky NSD_STATE_CHANGED broadcast emitted
// on Enabled-enter (§6).
type StateBroadcaster interface {
	BroadcastStateEnabled()
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastStateEnabled() {}

// Machine is the single-threaded event-driven state machine of spec.md
// §4.4: it owns the registries, the router, the lock manager and the two
// backend adapters, and serializes every mutation through Post/Run.
//
// Two hierarchical states are expressed as an explicit enabled flag plus a
// handle(msg) -> handled contract, per §9's design note, rather than as an
// inheritance hierarchy: handleEnabled runs first when enabled, and
// anything it does not claim falls through to handleDefault.
type Machine struct {
	reg          *Registry
	router       *Router
	config       *Config
	lock         *LockManager
	legacy       LegacyDaemon
	engine       ModernEngine
	offload      *OffloadRegistry
	deviceConfig DeviceConfigSource
	iface        InterfaceResolver
	broadcaster  StateBroadcaster
	log          *SharedLog
	machineLog   *TaggedLog

	enabled            bool
	cleanupTimer       *time.Timer
	legacyStarted      bool

	msgs chan Message
}

// MachineOption configures optional collaborators on New.
type MachineOption func(*Machine)

func WithInterfaceResolver(r InterfaceResolver) MachineOption {
	return func(m *Machine) { m.iface = r }
}

func WithBroadcaster(b StateBroadcaster) MachineOption {
	return func(m *Machine) { m.broadcaster = b }
}

// New builds a Machine. legacy/engine may be nil in tests that never route
// to the corresponding backend.
func New(reg *Registry, router *Router, config *Config, lock *LockManager, legacy LegacyDaemon, engine ModernEngine, deviceConfig DeviceConfigSource, opts ...MachineOption) *Machine {
	log := NewSharedLog(500)
	m := &Machine{
		reg:          reg,
		router:       router,
		config:       config,
		lock:         lock,
		legacy:       legacy,
		engine:       engine,
		offload:      NewOffloadRegistry(),
		deviceConfig: deviceConfig,
		broadcaster:  noopBroadcaster{},
		log:          log,
		machineLog:   log.ForSubComponent("StateMachine"),
		msgs:         make(chan Message, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Post enqueues msg onto the single handler queue. Safe to call from any
// goroutine; Run is the only goroutine that ever dequeues.
func (m *Machine) Post(msg Message) {
	m.msgs <- msg
}

// Run consumes messages strictly serially until ctx is cancelled, per §5's
// single-threaded cooperative event loop.
func (m *Machine) Run(ctx context.Context) {
	m.enterEnabled()
	for {
		select {
		case <-ctx.Done():
			m.exitEnabled()
			return
		case msg := <-m.msgs:
			m.Process(msg)
		}
	}
}

// Process handles exactly one message; exported so tests can drive the
// machine deterministically without a running goroutine.
func (m *Machine) Process(msg Message) {
	if m.enabled && m.handleEnabled(msg) {
		return
	}
	m.handleDefault(msg)
}

func (m *Machine) enterEnabled() {
	m.enabled = true
	m.broadcaster.BroadcastStateEnabled()
}

// exitEnabled schedules a daemon stop, per §4.4's "On exit: schedules
// daemon stop." Per open question 1, the original does not expunge
// outstanding requests or notify clients on exit either, and this port
// keeps that behavior rather than silently fixing it.
func (m *Machine) exitEnabled() {
	m.enabled = false
	m.scheduleDaemonCleanup()
}

// ---- Default state ----

func (m *Machine) handleDefault(msg Message) {
	switch v := msg.(type) {
	case RegisterClientMsg:
		m.doRegisterClient(v)
	case UnregisterClientMsg:
		m.doUnregisterClient(v.ClientID)
	case ClientDeathMsg:
		m.doUnregisterClient(v.ClientID)
	case DaemonStartupMsg:
		m.doDaemonStartup(v)
	case daemonCleanupTimerMsg:
		m.doDaemonCleanup()
	case WifiNetworksChangedMsg:
		m.lock.SetWifiLockRequiredNetworks(v.Networks)
		m.lock.Reevaluate(m.reg)
	case ActiveUidsChangedMsg:
		m.lock.SetRunningAppActiveUids(v.Uids)
		m.lock.Reevaluate(m.reg)
	default:
		m.rejectUnhandled(msg)
	}
}

// rejectUnhandled implements the Default state's blanket rejection of
// operational verbs: FAILURE_OPERATION_NOT_RUNNING for the stop-verbs
// (STOP_DISCOVERY, UNREGISTER_SERVICE, STOP_RESOLUTION) and
// FAILURE_INTERNAL_ERROR for DISCOVER_SERVICES, REGISTER_SERVICE and
// RESOLVE_SERVICE, per §4.4. Any other message is logged and dropped
// without a client reply.
func (m *Machine) rejectUnhandled(msg Message) {
	switch v := msg.(type) {
	case DiscoverServicesMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureInternalError, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnDiscoverServicesFailed(lk, k)
		})
	case StopDiscoveryMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureOperationNotRunning, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnStopDiscoveryFailed(lk, k)
		})
	case RegisterServiceMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureInternalError, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnRegisterServiceFailed(lk, k)
		})
	case UnregisterServiceMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureOperationNotRunning, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnUnregisterServiceFailed(lk, k)
		})
	case ResolveServiceMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureInternalError, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnResolveServiceFailed(lk, k)
		})
	case StopResolutionMsg:
		m.replyFailure(v.ClientID, v.ListenerKey, FailureOperationNotRunning, func(cb ClientCallback, lk int32, k FailureKind) {
			cb.OnStopResolutionFailed(lk, k)
		})
	default:
		m.machineLog.Warnf("dropping unhandled message in Default state: %T", msg)
	}
}

func (m *Machine) replyFailure(clientID ConnectorID, listenerKey int32, kind FailureKind, emit func(ClientCallback, int32, FailureKind)) {
	c, ok := m.reg.Client(clientID)
	if !ok {
		m.machineLog.Warnf("reply to unknown client %d dropped", clientID)
		return
	}
	emit(c.Callback, listenerKey, kind)
}

func (m *Machine) doRegisterClient(v RegisterClientMsg) {
	if v.Callback == nil {
		m.machineLog.Warnf("dropping REGISTER_CLIENT with nil callback")
		return
	}
	c := NewClientInfo(v.ClientID, v.UID, v.Callback, v.UseModernBackend, NoopMetricsSink{}, m.log)
	m.reg.AddClient(c)
}

func (m *Machine) doUnregisterClient(id ConnectorID) {
	c := m.reg.RemoveClient(id)
	if c == nil {
		return
	}
	m.expungeClient(c)
	m.lock.Reevaluate(m.reg)
	m.maybeScheduleDaemonCleanup()
}

// expungeClient cancels every outstanding backend operation for c and
// reports metrics, mirroring ClientInfo.expungeAllRequests.
func (m *Machine) expungeClient(c *ClientInfo) {
	for _, req := range c.allRequests() {
		m.cancelRequestBackend(req)
		c.Metrics.ReportUnregistration(c.UID, req.transactionID)
	}
}

func (m *Machine) cancelRequestBackend(req *ClientRequest) {
	switch req.backend {
	case BackendLegacy:
		if m.legacy != nil {
			_ = m.legacy.StopOperation(req.transactionID)
		}
	case BackendModern:
		if m.engine != nil {
			m.engine.UnregisterListener(req.transactionID)
		}
	}
}

func (m *Machine) doDaemonStartup(v DaemonStartupMsg) {
	c, ok := m.reg.Client(v.ClientID)
	if !ok {
		return
	}
	c.IsPreS = true
	m.cancelDaemonCleanup()
	m.ensureLegacyStarted()
}

func (m *Machine) ensureLegacyStarted() {
	if m.legacyStarted || m.legacy == nil {
		return
	}
	if err := m.legacy.Start(context.Background()); err == nil {
		m.legacyStarted = true
	}
}

func (m *Machine) doDaemonCleanup() {
	m.cleanupTimer = nil
	if m.reg.HasAnyLegacyRequest() || m.reg.HasAnyPreSClient() {
		return
	}
	if m.legacy != nil && m.legacyStarted {
		m.legacy.Stop()
		m.legacyStarted = false
	}
}

func (m *Machine) scheduleDaemonCleanup() {
	if m.cleanupTimer != nil {
		return
	}
	m.cleanupTimer = time.AfterFunc(m.config.DaemonCleanupDelay, func() {
		m.Post(daemonCleanupTimerMsg{})
	})
}

func (m *Machine) cancelDaemonCleanup() {
	if m.cleanupTimer != nil {
		m.cleanupTimer.Stop()
		m.cleanupTimer = nil
	}
}

// maybeScheduleDaemonCleanup implements §4.3's removal side effect: "legacy
// -> consider scheduling daemon stop after cleanup delay if no requests
// remain and no pre-S client is connected."
func (m *Machine) maybeScheduleDaemonCleanup() {
	if !m.reg.HasAnyLegacyRequest() && !m.reg.HasAnyPreSClient() {
		m.scheduleDaemonCleanup()
	}
}

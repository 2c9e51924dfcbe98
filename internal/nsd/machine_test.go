package nsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCallback captures every ClientCallback invocation for assertions,
// in the spirit of the teacher's counting/recording test doubles.
type recordingCallback struct {
	discoverStarted        []int32
	discoverFailed         []FailureKind
	found                  []ServiceInfo
	lost                   []ServiceInfo
	stopDiscoverySucceeded []int32
	stopDiscoveryFailed    []FailureKind
	registerSucceeded      []ServiceInfo
	registerFailed         []FailureKind
	unregisterSucceeded    []int32
	unregisterFailed       []FailureKind
	resolveSucceeded       []ServiceInfo
	resolveFailed          []FailureKind
	stopResolutionSucceeded []int32
	stopResolutionFailed    []FailureKind
	serviceInfoRegistered   []int32
	serviceInfoUnregistered []int32
	updated                 []ServiceInfo
	updatedLost             []int32
}

func (r *recordingCallback) OnDiscoverServicesStarted(lk int32) { r.discoverStarted = append(r.discoverStarted, lk) }
func (r *recordingCallback) OnDiscoverServicesFailed(lk int32, k FailureKind) {
	r.discoverFailed = append(r.discoverFailed, k)
}
func (r *recordingCallback) OnServiceFound(lk int32, info ServiceInfo) { r.found = append(r.found, info) }
func (r *recordingCallback) OnServiceLost(lk int32, info ServiceInfo)  { r.lost = append(r.lost, info) }
func (r *recordingCallback) OnStopDiscoverySucceeded(lk int32) {
	r.stopDiscoverySucceeded = append(r.stopDiscoverySucceeded, lk)
}
func (r *recordingCallback) OnStopDiscoveryFailed(lk int32, k FailureKind) {
	r.stopDiscoveryFailed = append(r.stopDiscoveryFailed, k)
}
func (r *recordingCallback) OnRegisterServiceSucceeded(lk int32, info ServiceInfo) {
	r.registerSucceeded = append(r.registerSucceeded, info)
}
func (r *recordingCallback) OnRegisterServiceFailed(lk int32, k FailureKind) {
	r.registerFailed = append(r.registerFailed, k)
}
func (r *recordingCallback) OnUnregisterServiceSucceeded(lk int32) {
	r.unregisterSucceeded = append(r.unregisterSucceeded, lk)
}
func (r *recordingCallback) OnUnregisterServiceFailed(lk int32, k FailureKind) {
	r.unregisterFailed = append(r.unregisterFailed, k)
}
func (r *recordingCallback) OnResolveServiceSucceeded(lk int32, info ServiceInfo) {
	r.resolveSucceeded = append(r.resolveSucceeded, info)
}
func (r *recordingCallback) OnResolveServiceFailed(lk int32, k FailureKind) {
	r.resolveFailed = append(r.resolveFailed, k)
}
func (r *recordingCallback) OnStopResolutionSucceeded(lk int32) {
	r.stopResolutionSucceeded = append(r.stopResolutionSucceeded, lk)
}
func (r *recordingCallback) OnStopResolutionFailed(lk int32, k FailureKind) {
	r.stopResolutionFailed = append(r.stopResolutionFailed, k)
}
func (r *recordingCallback) OnServiceInfoCallbackRegistered(lk int32) {
	r.serviceInfoRegistered = append(r.serviceInfoRegistered, lk)
}
func (r *recordingCallback) OnServiceInfoCallbackUnregistrationFailed(lk int32, k FailureKind) {}
func (r *recordingCallback) OnServiceInfoCallbackUnregistered(lk int32) {
	r.serviceInfoUnregistered = append(r.serviceInfoUnregistered, lk)
}
func (r *recordingCallback) OnServiceUpdated(lk int32, info ServiceInfo) { r.updated = append(r.updated, info) }
func (r *recordingCallback) OnServiceUpdatedLost(lk int32)               { r.updatedLost = append(r.updatedLost, lk) }

// fakeEngine is a minimal ModernEngine test double recording every call.
type fakeEngine struct {
	registered   map[int32]string
	unregistered []int32
	added        map[int32]ServiceInfo
	removed      []int32
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{registered: map[int32]string{}, added: map[int32]ServiceInfo{}}
}

func (f *fakeEngine) RegisterListener(txID int32, serviceType string, opts ListenOptions) error {
	f.registered[txID] = serviceType
	return nil
}
func (f *fakeEngine) UnregisterListener(txID int32) { f.unregistered = append(f.unregistered, txID) }
func (f *fakeEngine) AddService(txID int32, info ServiceInfo) error {
	f.added[txID] = info
	return nil
}
func (f *fakeEngine) RemoveService(txID int32) error {
	f.removed = append(f.removed, txID)
	delete(f.added, txID)
	return nil
}

type fakeInterfaceResolver struct {
	byNetwork map[Network]int
}

func (f *fakeInterfaceResolver) InterfaceIndexForNetwork(n Network) (int, bool) {
	idx, ok := f.byNetwork[n]
	return idx, ok
}

func newTestMachine(engine ModernEngine, legacy LegacyDaemon, lock MulticastLock, cfg *Config, dc DeviceConfigSource) (*Machine, *Registry, *LockManager) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	reg := NewRegistry()
	router := NewRouter(cfg, dc)
	lockMgr := NewLockManager(lock)
	m := New(reg, router, cfg, lockMgr, legacy, engine, dc,
		WithInterfaceResolver(&fakeInterfaceResolver{byNetwork: map[Network]int{42: 3}}))
	m.enterEnabled()
	return m, reg, lockMgr
}

// TestScenarioS1_DiscoverAndStop covers S1: found/found/lost then a clean
// stop, leaving the registries empty.
func TestScenarioS1_DiscoverAndStop(t *testing.T) {
	engine := newFakeEngine()
	m, reg, _ := newTestMachine(engine, &FakeLegacyDaemon{}, &CountingMulticastLock{}, nil, &StaticDeviceConfig{})

	cb := &recordingCallback{}
	m.Process(RegisterClientMsg{ClientID: 1, UID: 100, Callback: cb, UseModernBackend: true})
	m.Process(DiscoverServicesMsg{ClientID: 1, ListenerKey: 10, ServiceType: "_ipp._tcp", Network: AnyNetwork})
	require.Len(t, cb.discoverStarted, 1)

	var txID int32
	for tx := range engine.registered {
		txID = tx
	}
	require.NotZero(t, txID)

	m.Process(EngineEventMsg{Event: EngineEvent{Kind: EngineEventServiceFound, TransactionID: txID, Service: ServiceInfo{InstanceName: "printer1"}}})
	m.Process(EngineEventMsg{Event: EngineEvent{Kind: EngineEventServiceFound, TransactionID: txID, Service: ServiceInfo{InstanceName: "printer2"}}})
	m.Process(EngineEventMsg{Event: EngineEvent{Kind: EngineEventServiceLost, TransactionID: txID, Service: ServiceInfo{InstanceName: "printer1"}}})

	assert.Len(t, cb.found, 2)
	assert.Len(t, cb.lost, 1)

	m.Process(StopDiscoveryMsg{ClientID: 1, ListenerKey: 10})
	assert.Equal(t, []int32{10}, cb.stopDiscoverySucceeded)
	assert.Equal(t, 0, reg.TransactionCount())
	assert.True(t, reg.CheckInvariant())
}

// TestScenarioS2_LegacyResolveChaining covers S2: the two-phase resolve
// hand-off from SERVICE_RESOLVED to SERVICE_GET_ADDR_SUCCESS.
func TestScenarioS2_LegacyResolveChaining(t *testing.T) {
	legacy := &FakeLegacyDaemon{}
	m, reg, _ := newTestMachine(nil, legacy, &CountingMulticastLock{}, nil, &StaticDeviceConfig{})

	cb := &recordingCallback{}
	m.Process(RegisterClientMsg{ClientID: 2, UID: 200, Callback: cb})
	m.Process(ResolveServiceMsg{ClientID: 2, ListenerKey: 20, ServiceType: "_foo._tcp", InstanceName: "My"})
	require.Contains(t, legacy.Calls, "resolve")

	// First allocated transaction id in this machine is the resolve tx.
	m.Process(LegacyEventMsg{Event: LegacyEvent{
		Kind: LegacyEventServiceResolved, TransactionID: 1,
		FullName: `My._foo._tcp.local.`, Port: 515, TXT: map[string]string{},
	}})
	require.Contains(t, legacy.Calls, "getAddrInfo")

	m.Process(LegacyEventMsg{Event: LegacyEvent{
		Kind: LegacyEventGetAddrSuccess, TransactionID: 2,
		Address: "192.0.2.7", NetID: 42,
	}})

	require.Len(t, cb.resolveSucceeded, 1)
	got := cb.resolveSucceeded[0]
	assert.Equal(t, 515, got.Port)
	assert.Equal(t, "192.0.2.7", got.Host)
	assert.Equal(t, Network(42), got.CallbackNetwork.Network)
	assert.Equal(t, 0, reg.TransactionCount())
	assert.True(t, reg.CheckInvariant())
}

// TestScenarioS3_Quota covers S3: the 11th discovery on one client fails
// with MAX_LIMIT and the registry stays at the quota size.
func TestScenarioS3_Quota(t *testing.T) {
	legacy := &FakeLegacyDaemon{}
	cfg := DefaultConfig()
	m, reg, _ := newTestMachine(nil, legacy, &CountingMulticastLock{}, cfg, &StaticDeviceConfig{})

	cb := &recordingCallback{}
	m.Process(RegisterClientMsg{ClientID: 3, UID: 300, Callback: cb})

	for i := int32(0); i < 11; i++ {
		m.Process(DiscoverServicesMsg{ClientID: 3, ListenerKey: i, ServiceType: "_ipp._tcp"})
	}

	assert.Len(t, cb.discoverStarted, cfg.MaxRequestsPerClient)
	assert.Equal(t, []FailureKind{FailureMaxLimit}, cb.discoverFailed)
	assert.Equal(t, cfg.MaxRequestsPerClient, reg.TransactionCount())
}

// TestScenarioS4_LockGating covers S4: a modern discovery on an
// active/WIFI-required uid acquires the lock; stopping releases it.
func TestScenarioS4_LockGating(t *testing.T) {
	engine := newFakeEngine()
	countingLock := &CountingMulticastLock{}
	m, _, lockMgr := newTestMachine(engine, &FakeLegacyDaemon{}, countingLock, nil, &StaticDeviceConfig{})
	lockMgr.SetWifiLockRequiredNetworks([]Network{1})
	lockMgr.SetRunningAppActiveUids([]int{1000})

	cb := &recordingCallback{}
	m.Process(RegisterClientMsg{ClientID: 4, UID: 1000, Callback: cb, UseModernBackend: true})
	m.Process(DiscoverServicesMsg{ClientID: 4, ListenerKey: 40, ServiceType: "_ipp._tcp", Network: AnyNetwork})

	assert.Equal(t, 1, countingLock.Acquires)
	assert.True(t, lockMgr.Held())

	m.Process(StopDiscoveryMsg{ClientID: 4, ListenerKey: 40})
	assert.Equal(t, 1, countingLock.Releases)
	assert.False(t, lockMgr.Held())
}

// TestScenarioS5_TypeAllowlistEndToEnd covers S5 at the machine level: a
// per-type allowlist entry routes to modern even with the global flag off.
func TestScenarioS5_TypeAllowlistEndToEnd(t *testing.T) {
	engine := newFakeEngine()
	legacy := &FakeLegacyDaemon{}
	cfg := DefaultConfig()
	cfg.TypeAllowlist = ParseTypeAllowlist("_foo._tcp:foo")
	dc := &StaticDeviceConfig{DiscoveryManagerTags: map[string]bool{"foo": true}}
	m, _, _ := newTestMachine(engine, legacy, &CountingMulticastLock{}, cfg, dc)

	cb := &recordingCallback{}
	m.Process(RegisterClientMsg{ClientID: 5, UID: 500, Callback: cb})
	m.Process(DiscoverServicesMsg{ClientID: 5, ListenerKey: 50, ServiceType: "_foo._tcp"})
	m.Process(DiscoverServicesMsg{ClientID: 5, ListenerKey: 51, ServiceType: "_bar._tcp"})

	assert.Len(t, engine.registered, 1)
	assert.Contains(t, legacy.Calls, "discover")
}

// TestScenarioS6_ChannelDeathMidFlight covers S6: a dying client's modern
// discovery and legacy advertiser requests are both cancelled and the
// indices end up empty.
func TestScenarioS6_ChannelDeathMidFlight(t *testing.T) {
	engine := newFakeEngine()
	legacy := &FakeLegacyDaemon{}
	cfg := DefaultConfig()
	cfg.TypeAllowlist = ParseTypeAllowlist("_ipp._tcp:ipp")
	dc := &StaticDeviceConfig{DiscoveryManagerTags: map[string]bool{"ipp": true}}
	m, reg, _ := newTestMachine(engine, legacy, &CountingMulticastLock{}, cfg, dc)

	cb := &recordingCallback{}
	// Client does not opt into the modern backend directly: the discovery
	// routes modern via the per-type allowlist, while the advertiser flag
	// stays off so the register call stays on the legacy backend.
	m.Process(RegisterClientMsg{ClientID: 6, UID: 600, Callback: cb})
	m.Process(DiscoverServicesMsg{ClientID: 6, ListenerKey: 60, ServiceType: "_ipp._tcp"})
	m.Process(RegisterServiceMsg{ClientID: 6, ListenerKey: 61, Info: ServiceInfo{InstanceName: "svc", ServiceType: "_ipp._tcp", Port: 7}})

	require.Equal(t, 2, reg.TransactionCount())

	m.Process(ClientDeathMsg{ClientID: 6})

	assert.Len(t, engine.unregistered, 1)
	assert.Contains(t, legacy.Calls, "stop")
	assert.Equal(t, 0, reg.TransactionCount())
	assert.True(t, reg.CheckInvariant())
	_, ok := reg.Client(6)
	assert.False(t, ok)
}

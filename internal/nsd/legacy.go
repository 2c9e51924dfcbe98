package nsd

import "context"

// LegacyDaemon is the four-verb-plus-stop black-box interface the core
// consumes for the legacy native mDNS daemon (spec.md §4.5). The core never
// reaches past this interface into daemon internals.
type LegacyDaemon interface {
	Start(ctx context.Context) error
	Stop()
	Discover(transactionID int32, serviceType string) error
	Register(transactionID int32, info ServiceInfo) error
	Resolve(transactionID int32, serviceType, instanceName string) error
	GetAddrInfo(transactionID int32, hostname string, ifaceIndex int) error
	StopOperation(transactionID int32) error
}

// LegacyEventKind enumerates the four event kinds plus a terminal failure
// that the legacy daemon reports back per transaction (§4.5).
type LegacyEventKind int

const (
	LegacyEventServiceFound LegacyEventKind = iota
	LegacyEventServiceLost
	LegacyEventServiceRegistered
	LegacyEventServiceResolved
	LegacyEventGetAddrSuccess
	LegacyEventOperationFailed
)

// LegacyEvent is the normalized shape a legacy daemon event is posted to the
// state-machine queue as (§4.4's "Event fan-in" rule: never mutate state
// from the callback thread, always post a message).
type LegacyEvent struct {
	Kind          LegacyEventKind
	TransactionID int32
	// FullName is the escaped wire name, used by SERVICE_FOUND/LOST/RESOLVED.
	FullName string
	Port     int
	TXT      map[string]string
	NetID    Network
	// Address is the textual resolved address, set on GetAddrSuccess.
	Address string
}

// FakeLegacyDaemon is a minimal, synchronous LegacyDaemon test double:
// verbs just record the call; events are delivered by the test processing a
// LegacyEventMsg on the machine.
type FakeLegacyDaemon struct {
	Started bool
	Stopped bool
	Calls   []string
}

func (f *FakeLegacyDaemon) Start(context.Context) error { f.Started = true; return nil }
func (f *FakeLegacyDaemon) Stop()                        { f.Stopped = true }
func (f *FakeLegacyDaemon) Discover(tx int32, t string) error {
	f.Calls = append(f.Calls, "discover")
	return nil
}
func (f *FakeLegacyDaemon) Register(tx int32, info ServiceInfo) error {
	f.Calls = append(f.Calls, "register")
	return nil
}
func (f *FakeLegacyDaemon) Resolve(tx int32, t, name string) error {
	f.Calls = append(f.Calls, "resolve")
	return nil
}
func (f *FakeLegacyDaemon) GetAddrInfo(tx int32, host string, iface int) error {
	f.Calls = append(f.Calls, "getAddrInfo")
	return nil
}
func (f *FakeLegacyDaemon) StopOperation(tx int32) error {
	f.Calls = append(f.Calls, "stop")
	return nil
}

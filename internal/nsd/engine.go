package nsd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/brutella/dnssd"
)

// EngineEventKind enumerates the modern-engine callback shapes the adapter
// lowers into state-machine messages (§4.4's "Modern event lowering").
type EngineEventKind int

const (
	EngineEventServiceFound EngineEventKind = iota
	EngineEventServiceLost
	EngineEventServiceUpdated
	EngineEventServiceUpdatedLost
	EngineEventRegisterSucceeded
	EngineEventRegisterFailed
	EngineEventOffloadStartOrUpdate
	EngineEventOffloadStop
	EngineEventQuerySent
)

// EngineEvent is the normalized message posted from the modern engine
// adapter onto the state-machine queue; never mutate state from the
// callback goroutine directly (§9's "Event fan-in" design note).
type EngineEvent struct {
	Kind          EngineEventKind
	TransactionID int32
	Service       ServiceInfo
	InterfaceName string
	Offload       OffloadServiceInfo
}

// ListenOptions carries the requested network for a discovery/watch
// registration (§4.5's registerListener options parameter).
type ListenOptions struct {
	Network RequestedNetwork
}

// ModernEngine is the capability set the core consumes from the modern
// in-process mDNS engine (§4.5, §9's "dual backend" design note).
type ModernEngine interface {
	RegisterListener(txID int32, serviceType string, opts ListenOptions) error
	UnregisterListener(txID int32)
	AddService(txID int32, info ServiceInfo) error
	RemoveService(txID int32) error
}

// DNSSDEngine implements ModernEngine over github.com/brutella/dnssd,
// grounded on pkg/discovery/mdns.go's MDNSAdapter: dnssd.Responder for
// advertising, dnssd.LookupType for discovery/resolve/watch. Each
// transaction gets its own cancellable goroutine; results are translated
// into EngineEvent and posted to events.
type DNSSDEngine struct {
	events chan<- EngineEvent

	mu        sync.Mutex
	responder dnssd.Responder
	listeners map[int32]context.CancelFunc
	services  map[int32]dnssd.ServiceHandle
}

// NewDNSSDEngine constructs an engine adapter that posts lowered events onto
// events. events should be read by the state machine's main select loop.
func NewDNSSDEngine(events chan<- EngineEvent) (*DNSSDEngine, error) {
	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("nsd: failed to create mDNS responder: %w", err)
	}
	return &DNSSDEngine{
		events:    events,
		responder: rp,
		listeners: map[int32]context.CancelFunc{},
		services:  map[int32]dnssd.ServiceHandle{},
	}, nil
}

// Run starts the responder's event loop; callers run it in its own
// goroutine and cancel ctx to shut the engine down.
func (e *DNSSDEngine) Run(ctx context.Context) error {
	if err := e.responder.Respond(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("nsd: mDNS responder exited: %w", err)
	}
	return nil
}

// RegisterListener starts a dnssd.LookupType browse for serviceType, keyed
// by txID so UnregisterListener can cancel exactly this registration.
func (e *DNSSDEngine) RegisterListener(txID int32, serviceType string, opts ListenOptions) error {
	ctx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.listeners[txID] = cancel
	e.mu.Unlock()

	addFn := func(entry dnssd.BrowseEntry) {
		e.postFound(txID, entry)
	}
	rmvFn := func(entry dnssd.BrowseEntry) {
		e.postLost(txID, entry)
	}

	go func() {
		e.postQuerySent(txID)
		if err := dnssd.LookupType(ctx, serviceType, addFn, rmvFn); err != nil && err != context.Canceled {
			e.postRegisterFailed(txID)
		}
	}()

	return nil
}

// UnregisterListener cancels the browse goroutine registered for txID.
func (e *DNSSDEngine) UnregisterListener(txID int32) {
	e.mu.Lock()
	cancel, ok := e.listeners[txID]
	delete(e.listeners, txID)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// AddService advertises info via the shared responder, grounded on
// MDNSAdapter.Announce.
func (e *DNSSDEngine) AddService(txID int32, info ServiceInfo) error {
	cfg := dnssd.Config{
		Name:   info.InstanceName,
		Type:   info.ServiceType,
		Domain: "local",
		Text:   info.TXT,
		Port:   info.Port,
	}
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		e.postRegisterFailed(txID)
		return fmt.Errorf("nsd: failed to create mDNS service: %w", err)
	}

	handle, err := e.responder.Add(svc)
	if err != nil {
		e.postRegisterFailed(txID)
		return fmt.Errorf("nsd: failed to add mDNS service: %w", err)
	}

	e.mu.Lock()
	e.services[txID] = handle
	e.mu.Unlock()

	e.events <- EngineEvent{Kind: EngineEventRegisterSucceeded, TransactionID: txID, Service: info}
	return nil
}

// RemoveService withdraws a previously advertised service.
func (e *DNSSDEngine) RemoveService(txID int32) error {
	e.mu.Lock()
	handle, ok := e.services[txID]
	delete(e.services, txID)
	e.mu.Unlock()
	if !ok {
		return ErrRequestNotFound
	}
	e.responder.Remove(handle)
	return nil
}

func (e *DNSSDEngine) postFound(txID int32, entry dnssd.BrowseEntry) {
	info, ok := lowerBrowseEntry(entry, true)
	if !ok {
		return
	}
	e.events <- EngineEvent{Kind: EngineEventServiceFound, TransactionID: txID, Service: info}
}

func (e *DNSSDEngine) postLost(txID int32, entry dnssd.BrowseEntry) {
	info, ok := lowerBrowseEntry(entry, true)
	if !ok {
		return
	}
	e.events <- EngineEvent{Kind: EngineEventServiceLost, TransactionID: txID, Service: info}
}

func (e *DNSSDEngine) postRegisterFailed(txID int32) {
	e.events <- EngineEvent{Kind: EngineEventRegisterFailed, TransactionID: txID}
}

// postQuerySent lowers dnssd's initial query transmission into the same
// DISCOVERY_QUERY_SENT_CALLBACK-equivalent event the original issues from
// MdnsListener.onDiscoveryQuerySent for every modern-backend listener kind
// (discovery, resolve, and watch all share it).
func (e *DNSSDEngine) postQuerySent(txID int32) {
	e.events <- EngineEvent{Kind: EngineEventQuerySent, TransactionID: txID}
}

// lowerBrowseEntry implements §4.4's "modern event lowering": the label
// sequence must terminate in "local"; withFoundLostDot selects the
// historical trailing-dot affordance for SERVICE_FOUND/SERVICE_LOST, and
// without it the type is returned bare. No leading-dot form is produced:
// neither this adapter nor the state machine emits a resolve-succeeded
// event for modern-backend requests.
func lowerBrowseEntry(entry dnssd.BrowseEntry, withFoundLostDot bool) (ServiceInfo, bool) {
	if !strings.HasSuffix(entry.Domain, "local") {
		return ServiceInfo{}, false
	}

	typ := entry.Type
	if withFoundLostDot {
		typ = typ + "."
	}

	info := ServiceInfo{
		InstanceName: entry.Name,
		ServiceType:  typ,
		Port:         entry.Port,
	}
	if len(entry.IPs) > 0 {
		info.Host = entry.IPs[0].String()
	}
	return info, true
}

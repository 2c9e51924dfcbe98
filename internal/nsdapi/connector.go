package nsdapi

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/CelestialDroid/nsdcore/internal/nsd"
)

var nextConnectorID uint64

// Connector is the per-client bidirectional channel handle: Requests carries
// client->core traffic, and closing the connector notifies the core of
// channel death, the "any bidirectional message channel with death
// notification" substitute for binder's linkToDeath/DeathRecipient pair
// (spec.md §6). Token is an opaque external identity distinct from the
// internal monotone transaction allocator the core owns (spec.md §4.9).
type Connector struct {
	ID       nsd.ConnectorID
	Token    uuid.UUID
	Requests chan Request

	m     *nsd.Machine
	once  sync.Once
	death chan struct{}
}

// Connect allocates a connector id, registers the client against m, and
// starts the goroutine that drains Requests into machine messages until
// Close is called or the Requests channel is closed by its owner.
func Connect(m *nsd.Machine, uid int, cb nsd.ClientCallback, useModernBackend bool) *Connector {
	id := nsd.ConnectorID(atomic.AddUint64(&nextConnectorID, 1))
	c := &Connector{
		ID:       id,
		Token:    uuid.New(),
		Requests: make(chan Request, 16),
		m:        m,
		death:    make(chan struct{}),
	}
	m.Post(nsd.RegisterClientMsg{ClientID: id, UID: uid, Callback: cb, UseModernBackend: useModernBackend})
	go c.pump()
	return c
}

func (c *Connector) pump() {
	for {
		select {
		case req, ok := <-c.Requests:
			if !ok {
				c.Close()
				return
			}
			c.dispatch(req)
		case <-c.death:
			return
		}
	}
}

func (c *Connector) dispatch(req Request) {
	switch {
	case req.Discover != nil:
		c.m.Post(nsd.DiscoverServicesMsg{
			ClientID: c.ID, ListenerKey: req.Discover.ListenerKey,
			ServiceType: req.Discover.ServiceType, Network: req.Discover.Network,
		})
	case req.StopDiscovery != nil:
		c.m.Post(nsd.StopDiscoveryMsg{ClientID: c.ID, ListenerKey: req.StopDiscovery.ListenerKey})
	case req.Register != nil:
		c.m.Post(nsd.RegisterServiceMsg{
			ClientID: c.ID, ListenerKey: req.Register.ListenerKey,
			Info: req.Register.Info, Network: req.Register.Network,
		})
	case req.Unregister != nil:
		c.m.Post(nsd.UnregisterServiceMsg{ClientID: c.ID, ListenerKey: req.Unregister.ListenerKey})
	case req.Resolve != nil:
		c.m.Post(nsd.ResolveServiceMsg{
			ClientID: c.ID, ListenerKey: req.Resolve.ListenerKey,
			ServiceType: req.Resolve.ServiceType, InstanceName: req.Resolve.InstanceName,
		})
	case req.StopResolution != nil:
		c.m.Post(nsd.StopResolutionMsg{ClientID: c.ID, ListenerKey: req.StopResolution.ListenerKey})
	case req.RegisterCallback != nil:
		c.m.Post(nsd.RegisterServiceCallbackMsg{
			ClientID: c.ID, ListenerKey: req.RegisterCallback.ListenerKey,
			ServiceType: req.RegisterCallback.ServiceType, Network: req.RegisterCallback.Network,
		})
	case req.UnregisterCallback != nil:
		c.m.Post(nsd.UnregisterServiceCallbackMsg{ClientID: c.ID, ListenerKey: req.UnregisterCallback.ListenerKey})
	}
}

// Close notifies the core of channel death exactly once and stops the pump.
// Safe to call multiple times and from any goroutine.
func (c *Connector) Close() {
	c.once.Do(func() {
		close(c.death)
		c.m.Post(nsd.ClientDeathMsg{ClientID: c.ID})
	})
}

package nsd

import "fmt"

// ConnectorID is the bidirectional-channel identity a ClientInfo is keyed
// by in the Clients set, standing in for binder connector identity.
type ConnectorID uint64

// ClientCallback is the symmetric callback surface of §6, delivered back to
// a connected client. The state machine invokes these synchronously from
// its single goroutine; implementations must not block.
type ClientCallback interface {
	OnDiscoverServicesStarted(listenerKey int32)
	OnDiscoverServicesFailed(listenerKey int32, kind FailureKind)
	OnServiceFound(listenerKey int32, info ServiceInfo)
	OnServiceLost(listenerKey int32, info ServiceInfo)
	OnStopDiscoverySucceeded(listenerKey int32)
	OnStopDiscoveryFailed(listenerKey int32, kind FailureKind)
	OnRegisterServiceSucceeded(listenerKey int32, info ServiceInfo)
	OnRegisterServiceFailed(listenerKey int32, kind FailureKind)
	OnUnregisterServiceSucceeded(listenerKey int32)
	OnUnregisterServiceFailed(listenerKey int32, kind FailureKind)
	OnResolveServiceSucceeded(listenerKey int32, info ServiceInfo)
	OnResolveServiceFailed(listenerKey int32, kind FailureKind)
	OnStopResolutionSucceeded(listenerKey int32)
	OnStopResolutionFailed(listenerKey int32, kind FailureKind)
	OnServiceInfoCallbackRegistered(listenerKey int32)
	OnServiceInfoCallbackUnregistrationFailed(listenerKey int32, kind FailureKind)
	OnServiceInfoCallbackUnregistered(listenerKey int32)
	OnServiceUpdated(listenerKey int32, info ServiceInfo)
	OnServiceUpdatedLost(listenerKey int32)
}

// ServiceInfo is the user-visible service record exchanged over the client
// callback surface: name/type/port/txt plus the attributed network.
type ServiceInfo struct {
	InstanceName string
	ServiceType  string
	Port         int
	TXT          map[string]string
	Host         string // textual address, empty until resolved
	CallbackNetwork
}

// ClientInfo is one connected client channel, per spec.md §3.
type ClientInfo struct {
	ID               ConnectorID
	Callback         ClientCallback
	UID              int
	UsesModernBackend bool
	IsPreS           bool
	clientRequests   map[int32]*ClientRequest // keyed by clientRequestId
	resolvedService  *ServiceInfo              // legacy two-phase resolve scratch
	Metrics          ClientMetricsSink
	Log              *TaggedLog
	seq              int
}

// NewClientInfo constructs a ClientInfo ready for use.
func NewClientInfo(id ConnectorID, uid int, cb ClientCallback, useModern bool, metrics ClientMetricsSink, log *SharedLog) *ClientInfo {
	if metrics == nil {
		metrics = NoopMetricsSink{}
	}
	c := &ClientInfo{
		ID:                id,
		Callback:          cb,
		UID:               uid,
		UsesModernBackend: useModern,
		clientRequests:    map[int32]*ClientRequest{},
		Metrics:           metrics,
	}
	c.Log = log.ForSubComponent(c.tag())
	return c
}

func (c *ClientInfo) tag() string {
	return fmt.Sprintf("Client%d-%d", c.UID, c.ID)
}

// RequestCount reports the current quota usage.
func (c *ClientInfo) RequestCount() int { return len(c.clientRequests) }

// AtQuota reports whether this client has reached maxRequests outstanding
// requests (spec.md §3's "quota |clientRequests| <= MAX_LIMIT" invariant).
func (c *ClientInfo) AtQuota(maxRequests int) bool {
	return len(c.clientRequests) >= maxRequests
}

// RequestByListenerKey looks up an outstanding request by its
// client-chosen listenerKey (clientRequestId).
func (c *ClientInfo) RequestByListenerKey(listenerKey int32) (*ClientRequest, bool) {
	r, ok := c.clientRequests[listenerKey]
	return r, ok
}

func (c *ClientInfo) addRequest(req *ClientRequest) {
	c.clientRequests[req.clientRequestID] = req
}

func (c *ClientInfo) removeRequest(listenerKey int32) *ClientRequest {
	r, ok := c.clientRequests[listenerKey]
	if !ok {
		return nil
	}
	delete(c.clientRequests, listenerKey)
	return r
}

// allRequests returns a stable-ordered-enough snapshot of outstanding
// requests, used by expunge-on-death and HasModernRequestMatching.
func (c *ClientInfo) allRequests() []*ClientRequest {
	out := make([]*ClientRequest, 0, len(c.clientRequests))
	for _, r := range c.clientRequests {
		out = append(out, r)
	}
	return out
}

// HasModernRequestMatching reports whether this client holds at least one
// modern-backend request whose requested network matches net, per §4.7.
func (c *ClientInfo) HasModernRequestMatching(net Network) bool {
	for _, r := range c.clientRequests {
		if r.backend == BackendModern && r.MatchesNetwork(net) {
			return true
		}
	}
	return false
}

// SetResolvedServiceScratch sets/clears the legacy two-phase resolve
// scratchpad; non-nil only between a legacy RESOLVE_SERVICE acceptance and
// its terminal event (spec.md §3 invariant).
func (c *ClientInfo) SetResolvedServiceScratch(info *ServiceInfo) {
	c.resolvedService = info
}

func (c *ClientInfo) ResolvedServiceScratch() *ServiceInfo {
	return c.resolvedService
}

package nsd

import "time"

// Backend identifies which collaborator a request was routed to, stored on
// the request so cancel-time dispatch knows where to send the stop.
type Backend int

const (
	BackendLegacy Backend = iota
	BackendModern
)

func (b Backend) String() string {
	if b == BackendModern {
		return "modern"
	}
	return "legacy"
}

// LegacyVerb names the originating legacy operation so expunge/cleanup can
// invoke the matching stop call.
type LegacyVerb int

const (
	LegacyVerbDiscover LegacyVerb = iota
	LegacyVerbRegister
	LegacyVerbResolve
	LegacyVerbGetAddr
)

// requestHeader carries the fields shared by all three ClientRequest
// variants: spec.md §3 calls these out explicitly as common fields on a
// tagged sum.
type requestHeader struct {
	transactionID      int32
	clientRequestID    int32
	startTime          time.Time
	backend            Backend
	foundCount         int
	lostCount          int
	sentQueryCount     int
	uniqueNames        map[string]struct{}
	isServiceFromCache bool // sticky: false -> true only
}

func newRequestHeader(txID, clientReqID int32, backend Backend) requestHeader {
	return requestHeader{
		transactionID:   txID,
		clientRequestID: clientReqID,
		startTime:       time.Now(),
		backend:         backend,
		uniqueNames:     map[string]struct{}{},
	}
}

// recordServiceName adds name to the capped uniqueNames set (spec.md §3:
// "uniqueNames set capped at 100").
func (h *requestHeader) recordServiceName(name string, cap int) {
	if len(h.uniqueNames) >= cap {
		return
	}
	h.uniqueNames[name] = struct{}{}
}

// setFromCache applies the sticky false->true transition (property 6).
func (h *requestHeader) setFromCache(v bool) {
	if v {
		h.isServiceFromCache = true
	}
}

// RequestKind distinguishes the three ClientRequest variants of spec.md §3.
type RequestKind int

const (
	RequestKindLegacy RequestKind = iota
	RequestKindAdvertiser
	RequestKindDiscoveryManager
)

// ClientRequest is the tagged sum described in spec.md's design notes: one
// shared header, one of three payloads selected by Kind.
type ClientRequest struct {
	requestHeader
	Kind RequestKind

	// Legacy payload.
	LegacyOp LegacyVerb

	// Advertiser payload.
	AdvertiserNetwork RequestedNetwork

	// DiscoveryManager payload.
	EngineListenerHandle any // opaque handle into the modern engine
	RequestedNetwork      RequestedNetwork
}

// NewLegacyRequest builds a Legacy-variant request.
func NewLegacyRequest(txID, clientReqID int32, op LegacyVerb) *ClientRequest {
	return &ClientRequest{
		requestHeader: newRequestHeader(txID, clientReqID, BackendLegacy),
		Kind:          RequestKindLegacy,
		LegacyOp:      op,
	}
}

// NewAdvertiserRequest builds an Advertiser-variant request (always modern
// backend: it is used only for REGISTER_SERVICE routed to the modern engine;
// a legacy registration is a Legacy-variant request).
func NewAdvertiserRequest(txID, clientReqID int32, network RequestedNetwork) *ClientRequest {
	return &ClientRequest{
		requestHeader:     newRequestHeader(txID, clientReqID, BackendModern),
		Kind:              RequestKindAdvertiser,
		AdvertiserNetwork: network,
	}
}

// NewDiscoveryManagerRequest builds a DiscoveryManager-variant request.
func NewDiscoveryManagerRequest(txID, clientReqID int32, listener any, network RequestedNetwork) *ClientRequest {
	return &ClientRequest{
		requestHeader:         newRequestHeader(txID, clientReqID, BackendModern),
		Kind:                  RequestKindDiscoveryManager,
		EngineListenerHandle:  listener,
		RequestedNetwork:      network,
	}
}

// MatchesNetwork reports whether this request's requested network intersects
// net, used by the lock manager (§4.7). Only DiscoveryManager and Advertiser
// requests carry a requested network; Legacy requests never hold the
// multicast lock since they never run on the modern backend.
func (r *ClientRequest) MatchesNetwork(net Network) bool {
	switch r.Kind {
	case RequestKindDiscoveryManager:
		return r.RequestedNetwork.Matches(net)
	case RequestKindAdvertiser:
		return r.AdvertiserNetwork.Matches(net)
	default:
		return false
	}
}

package nsd

// Network identifies a link the socket provider has told us about. The
// zero value, NetworkUnset, and LocalNetworkID are sentinels; any other
// value names a concrete network.
type Network int64

const (
	// NetworkUnset means "no specific network attached".
	NetworkUnset Network = 0
	// LocalNetworkID is the dummy-net sentinel used for loopback,
	// local-only advertisements that never traverse a real link.
	LocalNetworkID Network = -1
)

// RequestedNetwork is the nullable requested-network field carried by
// Advertiser and DiscoveryManager requests: a nil value means "any network".
type RequestedNetwork struct {
	set bool
	net Network
}

// AnyNetwork is the nullable "no preference" requested network.
var AnyNetwork = RequestedNetwork{}

// NewRequestedNetwork wraps a concrete network as a non-null requested
// network value.
func NewRequestedNetwork(n Network) RequestedNetwork {
	return RequestedNetwork{set: true, net: n}
}

// Matches reports whether this requested network matches net, per §4.7/§4.6:
// an unset requested network matches everything.
func (r RequestedNetwork) Matches(net Network) bool {
	if !r.set {
		return true
	}
	return r.net == net
}

// CallbackNetwork is the (network, interfaceIndex) pair attached to an
// outbound client callback, after the attribution rules of §4.6 have been
// applied.
type CallbackNetwork struct {
	Network        Network
	HasNetwork     bool
	InterfaceIndex int
}

// AttributeCallbackNetwork implements §4.6's outbound attribution rules.
func AttributeCallbackNetwork(netID Network, ifaceIndex int) CallbackNetwork {
	switch netID {
	case NetworkUnset:
		return CallbackNetwork{}
	case LocalNetworkID:
		return CallbackNetwork{InterfaceIndex: ifaceIndex}
	default:
		return CallbackNetwork{Network: netID, HasNetwork: true, InterfaceIndex: ifaceIndex}
	}
}

// InterfaceResolver resolves a requested Network to the link-layer interface
// index it corresponds to; the real implementation consults the socket
// provider's link-property cache, which this package does not own.
type InterfaceResolver interface {
	InterfaceIndexForNetwork(n Network) (int, bool)
}

// AttributeInboundNetwork resolves an inbound requested network to an
// interface index, per §4.6's "fail the request immediately" rule when no
// mapping exists.
func AttributeInboundNetwork(r InterfaceResolver, req RequestedNetwork) (int, error) {
	if !req.set {
		return 0, nil
	}
	idx, ok := r.InterfaceIndexForNetwork(req.net)
	if !ok {
		return 0, ErrNetworkUnattributed
	}
	return idx, nil
}

// Package nsdapi is the client-facing transport layer: a bidirectional
// channel with death notification standing in for the binder connection the
// original service exposed to its clients (spec.md §6).
package nsdapi

import "github.com/CelestialDroid/nsdcore/internal/nsd"

// Request is the envelope a client sends over its channel to the
// orchestrator. Exactly one field is set per request, mirroring the single
// IPC call the transport replaces.
type Request struct {
	Discover           *DiscoverRequest
	StopDiscovery      *StopRequest
	Register           *RegisterRequest
	Unregister         *StopRequest
	Resolve            *ResolveRequest
	StopResolution     *StopRequest
	RegisterCallback   *RegisterCallbackRequest
	UnregisterCallback *StopRequest
}

type DiscoverRequest struct {
	ListenerKey int32
	ServiceType string
	Network     nsd.RequestedNetwork
}

type StopRequest struct {
	ListenerKey int32
}

type RegisterRequest struct {
	ListenerKey int32
	Info        nsd.ServiceInfo
	Network     nsd.RequestedNetwork
}

type ResolveRequest struct {
	ListenerKey  int32
	ServiceType  string
	InstanceName string
}

type RegisterCallbackRequest struct {
	ListenerKey int32
	ServiceType string
	Network     nsd.RequestedNetwork
}

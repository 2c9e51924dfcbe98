package nsdapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CelestialDroid/nsdcore/internal/nsd"
)

// signalingCallback implements nsd.ClientCallback and reports discovery
// starts over a channel so the test can synchronize with the machine's own
// goroutine instead of sleeping.
type signalingCallback struct {
	started chan int32
}

func (s *signalingCallback) OnDiscoverServicesStarted(lk int32) { s.started <- lk }
func (s *signalingCallback) OnDiscoverServicesFailed(int32, nsd.FailureKind) {}
func (s *signalingCallback) OnServiceFound(int32, nsd.ServiceInfo)  {}
func (s *signalingCallback) OnServiceLost(int32, nsd.ServiceInfo)   {}
func (s *signalingCallback) OnStopDiscoverySucceeded(int32)        {}
func (s *signalingCallback) OnStopDiscoveryFailed(int32, nsd.FailureKind) {}
func (s *signalingCallback) OnRegisterServiceSucceeded(int32, nsd.ServiceInfo) {}
func (s *signalingCallback) OnRegisterServiceFailed(int32, nsd.FailureKind)    {}
func (s *signalingCallback) OnUnregisterServiceSucceeded(int32)               {}
func (s *signalingCallback) OnUnregisterServiceFailed(int32, nsd.FailureKind) {}
func (s *signalingCallback) OnResolveServiceSucceeded(int32, nsd.ServiceInfo) {}
func (s *signalingCallback) OnResolveServiceFailed(int32, nsd.FailureKind)    {}
func (s *signalingCallback) OnStopResolutionSucceeded(int32)                 {}
func (s *signalingCallback) OnStopResolutionFailed(int32, nsd.FailureKind)    {}
func (s *signalingCallback) OnServiceInfoCallbackRegistered(int32)            {}
func (s *signalingCallback) OnServiceInfoCallbackUnregistrationFailed(int32, nsd.FailureKind) {}
func (s *signalingCallback) OnServiceInfoCallbackUnregistered(int32) {}
func (s *signalingCallback) OnServiceUpdated(int32, nsd.ServiceInfo) {}
func (s *signalingCallback) OnServiceUpdatedLost(int32)              {}

func TestConnector_DiscoverRoundTrip(t *testing.T) {
	reg := nsd.NewRegistry()
	cfg := nsd.DefaultConfig()
	dc := &nsd.StaticDeviceConfig{}
	router := nsd.NewRouter(cfg, dc)
	lock := nsd.NewLockManager(&nsd.CountingMulticastLock{})
	m := nsd.New(reg, router, cfg, lock, &nsd.FakeLegacyDaemon{}, nil, dc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	cb := &signalingCallback{started: make(chan int32, 1)}
	conn := Connect(m, 1, cb, false)
	defer conn.Close()

	conn.Requests <- Request{Discover: &DiscoverRequest{ListenerKey: 1, ServiceType: "_ipp._tcp"}}

	select {
	case lk := <-cb.started:
		assert.Equal(t, int32(1), lk)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for discovery start")
	}
}

func TestConnector_CloseIsIdempotentAndNotifiesDeath(t *testing.T) {
	reg := nsd.NewRegistry()
	cfg := nsd.DefaultConfig()
	dc := &nsd.StaticDeviceConfig{}
	router := nsd.NewRouter(cfg, dc)
	lock := nsd.NewLockManager(&nsd.CountingMulticastLock{})
	m := nsd.New(reg, router, cfg, lock, &nsd.FakeLegacyDaemon{}, nil, dc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	cb := &signalingCallback{started: make(chan int32, 1)}
	conn := Connect(m, 2, cb, false)
	assert.Eventually(t, func() bool { _, ok := reg.Client(conn.ID); return ok }, time.Second, time.Millisecond)

	conn.Close()
	conn.Close() // must not panic or double-post
	assert.Eventually(t, func() bool { _, ok := reg.Client(conn.ID); return !ok }, time.Second, time.Millisecond)
}

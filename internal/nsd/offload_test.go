package nsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingOffloadCallback struct {
	received []OffloadServiceInfo
}

func (r *recordingOffloadCallback) OnOffloadServiceUpdate(info OffloadServiceInfo) {
	r.received = append(r.received, info)
}

func TestOffloadRegistry_InterfaceAndTypeBitMatch(t *testing.T) {
	reg := NewOffloadRegistry()
	cb := &recordingOffloadCallback{}
	reg.Register("wlan0", 0b1, 0b01, cb)

	reg.Dispatch(OffloadServiceInfo{InterfaceName: "wlan0", TypeBits: 0b01})
	reg.Dispatch(OffloadServiceInfo{InterfaceName: "wlan0", TypeBits: 0b10}) // no bit overlap
	reg.Dispatch(OffloadServiceInfo{InterfaceName: "eth0", TypeBits: 0b01})  // wrong interface

	assert.Len(t, cb.received, 1)
}

func TestOffloadRegistry_ReplaysSnapshotOnRegister(t *testing.T) {
	reg := NewOffloadRegistry()
	first := &recordingOffloadCallback{}
	reg.Register("wlan0", 0b1, 0b01, first)
	reg.Dispatch(OffloadServiceInfo{InterfaceName: "wlan0", TypeBits: 0b01, Payload: "svc1"})

	second := &recordingOffloadCallback{}
	reg.Register("wlan0", 0b1, 0b01, second)

	assert.Len(t, second.received, 1)
	assert.Equal(t, "svc1", second.received[0].Payload)
}

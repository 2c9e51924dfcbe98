package nsd

// OffloadServiceInfo is the opaque offload payload passed through per
// spec.md §6: the core only inspects InterfaceName and TypeBits.
type OffloadServiceInfo struct {
	InterfaceName string
	TypeBits      uint32
	Payload       any // opaque to the core
}

// OffloadCallback is invoked for matching OffloadServiceInfo updates.
type OffloadCallback interface {
	OnOffloadServiceUpdate(info OffloadServiceInfo)
}

type offloadEntry struct {
	interfaceName string
	capabilityBits uint32
	typeBits       uint32
	callback       OffloadCallback
}

// OffloadRegistry is the fan-out registry of §4.8: a list of
// (interfaceName, capability bits, type bits, callback) entries.
type OffloadRegistry struct {
	entries []offloadEntry
	// snapshots holds the currently advertised services per interface, so
	// a newly registered engine can be replayed the current state
	// immediately, per §4.8's "snapshot ... replayed immediately" rule.
	snapshots map[string][]OffloadServiceInfo
}

// NewOffloadRegistry returns an empty registry.
func NewOffloadRegistry() *OffloadRegistry {
	return &OffloadRegistry{snapshots: map[string][]OffloadServiceInfo{}}
}

// Register adds an offload engine entry and replays the current snapshot
// for its interface.
func (o *OffloadRegistry) Register(interfaceName string, capabilityBits, typeBits uint32, cb OffloadCallback) {
	o.entries = append(o.entries, offloadEntry{
		interfaceName:  interfaceName,
		capabilityBits: capabilityBits,
		typeBits:       typeBits,
		callback:       cb,
	})
	for _, info := range o.snapshots[interfaceName] {
		if info.TypeBits&typeBits != 0 {
			cb.OnOffloadServiceUpdate(info)
		}
	}
}

// Unregister removes every entry whose callback is cb.
func (o *OffloadRegistry) Unregister(cb OffloadCallback) {
	out := o.entries[:0]
	for _, e := range o.entries {
		if e.callback != cb {
			out = append(out, e)
		}
	}
	o.entries = out
}

// Dispatch fans info out to every matching engine (interface match AND
// type-bit intersection) and updates the interface's replay snapshot.
// Remote-side errors are the caller's concern to swallow, per §4.8; this
// registry never returns one.
func (o *OffloadRegistry) Dispatch(info OffloadServiceInfo) {
	o.updateSnapshot(info)
	for _, e := range o.entries {
		if e.interfaceName != info.InterfaceName {
			continue
		}
		if e.typeBits&info.TypeBits == 0 {
			continue
		}
		e.callback.OnOffloadServiceUpdate(info)
	}
}

func (o *OffloadRegistry) updateSnapshot(info OffloadServiceInfo) {
	list := o.snapshots[info.InterfaceName]
	for i, existing := range list {
		if existing.Payload == info.Payload {
			list[i] = info
			o.snapshots[info.InterfaceName] = list
			return
		}
	}
	o.snapshots[info.InterfaceName] = append(list, info)
}

// RemoveFromSnapshot drops a service from the interface's replay snapshot
// on onOffloadStop.
func (o *OffloadRegistry) RemoveFromSnapshot(interfaceName string, payload any) {
	list := o.snapshots[interfaceName]
	out := list[:0]
	for _, existing := range list {
		if existing.Payload != payload {
			out = append(out, existing)
		}
	}
	o.snapshots[interfaceName] = out
}

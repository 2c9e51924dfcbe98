package nsd

import (
	"fmt"
	"strings"
)

// Dump renders the plain-text diagnostic view: the reverse-chronological
// state-machine log followed by one section per connected client listing its
// outstanding requests, grounded on SharedLog.reverseDump's "history then
// per-client detail" layout.
func (m *Machine) Dump() string {
	var b strings.Builder

	b.WriteString("mDNS state machine log:\n")
	for _, line := range m.log.ReverseDump() {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString("\nClients:\n")
	for _, c := range m.reg.AllClients() {
		fmt.Fprintf(&b, "  client %d (uid=%d modern=%v preS=%v)\n", c.ID, c.UID, c.UsesModernBackend, c.IsPreS)
		for _, req := range c.allRequests() {
			fmt.Fprintf(&b, "    tx=%d listenerKey=%d kind=%v backend=%v found=%d lost=%d sentQueries=%d fromCache=%v\n",
				req.transactionID, req.clientRequestID, req.Kind, req.backend,
				req.foundCount, req.lostCount, req.sentQueryCount, req.isServiceFromCache)
		}
		for _, line := range c.Log.log.ReverseDump() {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, "\nmulticast lock held: %v\n", m.lock.Held())
	fmt.Fprintf(&b, "legacy daemon started: %v\n", m.legacyStarted)

	return b.String()
}

func (k RequestKind) String() string {
	switch k {
	case RequestKindLegacy:
		return "legacy"
	case RequestKindAdvertiser:
		return "advertiser"
	case RequestKindDiscoveryManager:
		return "discoveryManager"
	default:
		return "unknown"
	}
}

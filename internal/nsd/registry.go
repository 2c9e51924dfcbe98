package nsd

import "sync"

// Registry owns the three global indices described in spec.md §3: the
// Clients set, the TransactionIndex, and the id allocator that feeds it.
// It is mutated only from the state-machine goroutine (spec.md §5). Every
// method still takes mu (the write lock for mutations, the read lock for
// lookups) so Dump()/tests can read the maps from another goroutine,
// mirroring the copy-on-read pattern in TransferStatusManager.
type Registry struct {
	mu                sync.RWMutex
	ids               idAllocator
	clients           map[ConnectorID]*ClientInfo
	transactionIndex  map[int32]ConnectorID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:          map[ConnectorID]*ClientInfo{},
		transactionIndex: map[int32]ConnectorID{},
	}
}

// AddClient registers a new ClientInfo (REGISTER_CLIENT).
func (r *Registry) AddClient(c *ClientInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Client looks up a connected client by id.
func (r *Registry) Client(id ConnectorID) (*ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// RemoveClient deletes a ClientInfo and every TransactionIndex entry it
// owns. Callers are responsible for expunging (cancelling backend ops,
// emitting metrics) before calling this — this method only maintains index
// consistency.
func (r *Registry) RemoveClient(id ConnectorID) *ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	for _, req := range c.clientRequests {
		delete(r.transactionIndex, req.transactionID)
	}
	delete(r.clients, id)
	return c
}

// NextTransactionID allocates the next unique, non-zero transaction id.
func (r *Registry) NextTransactionID() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids.next()
}

// StoreRequest inserts req into both the client's map and the
// TransactionIndex, maintaining the bidirectional invariant of spec.md §3.
func (r *Registry) StoreRequest(clientID ConnectorID, req *ClientRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	c.addRequest(req)
	r.transactionIndex[req.transactionID] = clientID
	return nil
}

// RemoveRequestByListenerKey erases a request from both maps, returning it.
func (r *Registry) RemoveRequestByListenerKey(clientID ConnectorID, listenerKey int32) *ClientRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return nil
	}
	req := c.removeRequest(listenerKey)
	if req != nil {
		delete(r.transactionIndex, req.transactionID)
	}
	return req
}

// RemoveRequestByTransactionID erases a request looked up by transaction id,
// used by legacy two-phase resolve migration and backend event handling.
func (r *Registry) RemoveRequestByTransactionID(txID int32) (ConnectorID, *ClientRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clientID, ok := r.transactionIndex[txID]
	if !ok {
		return 0, nil
	}
	c := r.clients[clientID]
	var found *ClientRequest
	for key, req := range c.clientRequests {
		if req.transactionID == txID {
			delete(c.clientRequests, key)
			found = req
			break
		}
	}
	delete(r.transactionIndex, txID)
	return clientID, found
}

// ClientForTransaction resolves the owning client for a transaction id, the
// core lookup every backend-event handler performs first.
func (r *Registry) ClientForTransaction(txID int32) (*ClientInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clientID, ok := r.transactionIndex[txID]
	if !ok {
		return nil, false
	}
	return r.clients[clientID], true
}

// RequestForTransaction resolves both the owning client and the request
// record for a transaction id.
func (r *Registry) RequestForTransaction(txID int32) (*ClientInfo, *ClientRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clientID, ok := r.transactionIndex[txID]
	if !ok {
		return nil, nil, false
	}
	c := r.clients[clientID]
	for _, req := range c.clientRequests {
		if req.transactionID == txID {
			return c, req, true
		}
	}
	return c, nil, false
}

// MigrateTransaction re-keys a request from oldTxID to newTxID while keeping
// it under the same client and clientRequestId, for the legacy two-phase
// resolve hand-off (resolve tx -> getAddrInfo tx) described in §4.4.
func (r *Registry) MigrateTransaction(clientID ConnectorID, oldTxID, newTxID int32, mutate func(*ClientRequest)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	var key int32
	var req *ClientRequest
	for k, cand := range c.clientRequests {
		if cand.transactionID == oldTxID {
			key, req = k, cand
			break
		}
	}
	if req == nil {
		return ErrRequestNotFound
	}
	delete(r.transactionIndex, oldTxID)
	req.transactionID = newTxID
	if mutate != nil {
		mutate(req)
	}
	c.clientRequests[key] = req
	r.transactionIndex[newTxID] = clientID
	return nil
}

// CheckInvariant verifies property 1 from spec.md §8: a transactionId is
// present in TransactionIndex iff some ClientInfo holds a request with that
// id. Used by tests; production code never needs to call this on the hot
// path since both maps are always mutated together.
func (r *Registry) CheckInvariant() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[int32]bool{}
	for _, c := range r.clients {
		for _, req := range c.clientRequests {
			txID := req.transactionID
			seen[txID] = true
			if _, ok := r.transactionIndex[txID]; !ok {
				return false
			}
		}
	}
	for txID := range r.transactionIndex {
		if !seen[txID] {
			return false
		}
	}
	return true
}

// AllClients returns a snapshot slice of connected clients, for lock-manager
// re-evaluation and dump.
func (r *Registry) AllClients() []*ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// TransactionCount reports how many live transactions are tracked.
func (r *Registry) TransactionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transactionIndex)
}

// HasAnyPreSClient reports whether any connected client is a pre-S client.
func (r *Registry) HasAnyPreSClient() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.IsPreS {
			return true
		}
	}
	return false
}

// HasAnyLegacyRequest reports whether any live request is routed to the
// legacy backend, used by the daemon-cleanup scheduling rule.
func (r *Registry) HasAnyLegacyRequest() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		for _, req := range c.clientRequests {
			if req.backend == BackendLegacy {
				return true
			}
		}
	}
	return false
}

// HasAnyModernRequest reports whether any live request is routed to the
// modern backend. The state machine does not call it, and nothing in this
// package asks a socket provider to stop when the last modern request goes.
func (r *Registry) HasAnyModernRequest() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		for _, req := range c.clientRequests {
			if req.backend == BackendModern {
				return true
			}
		}
	}
	return false
}

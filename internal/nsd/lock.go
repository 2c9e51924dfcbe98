package nsd

// MulticastLock abstracts the platform-level Wi-Fi multicast lock; the real
// implementation talks to the OS, tests use a counting fake.
type MulticastLock interface {
	Acquire()
	Release()
}

// CountingMulticastLock is a test double that counts acquire/release calls,
// used to verify property 5 (lock idempotence).
type CountingMulticastLock struct {
	Acquires int
	Releases int
	held     bool
}

func (l *CountingMulticastLock) Acquire() {
	if l.held {
		return
	}
	l.held = true
	l.Acquires++
}

func (l *CountingMulticastLock) Release() {
	if !l.held {
		return
	}
	l.held = false
	l.Releases++
}

// LockManager derives and holds the multicast-lock state from the three
// inputs of spec.md §3/§4.7.
type LockManager struct {
	lock                     MulticastLock
	wifiLockRequiredNetworks map[Network]struct{}
	runningAppActiveUids     map[int]struct{}
	held                     bool
}

// NewLockManager returns a LockManager wired to the given platform lock.
func NewLockManager(lock MulticastLock) *LockManager {
	return &LockManager{
		lock:                     lock,
		wifiLockRequiredNetworks: map[Network]struct{}{},
		runningAppActiveUids:     map[int]struct{}{},
	}
}

// SetWifiLockRequiredNetworks replaces the socket provider's reported set of
// Wi-Fi networks that are not a VPN, not nameless, and not tethering.
func (m *LockManager) SetWifiLockRequiredNetworks(networks []Network) {
	m.wifiLockRequiredNetworks = map[Network]struct{}{}
	for _, n := range networks {
		m.wifiLockRequiredNetworks[n] = struct{}{}
	}
}

// SetRunningAppActiveUids replaces the set of uids at or below the
// importance cutoff.
func (m *LockManager) SetRunningAppActiveUids(uids []int) {
	m.runningAppActiveUids = map[int]struct{}{}
	for _, u := range uids {
		m.runningAppActiveUids[u] = struct{}{}
	}
}

// NeededLockUID implements §4.7's getMulticastLockNeededUid: -1 if no uid
// needs the lock, else the uid of a client holding a matching modern request.
func (m *LockManager) NeededLockUID(reg *Registry) int {
	if len(m.wifiLockRequiredNetworks) == 0 {
		return -1
	}

	for _, c := range reg.AllClients() {
		if _, active := m.runningAppActiveUids[c.UID]; !active {
			continue
		}
		for net := range m.wifiLockRequiredNetworks {
			if c.HasModernRequestMatching(net) {
				return c.UID
			}
		}
	}
	return -1
}

// Reevaluate recomputes the lock-needed state and idempotently
// acquires/releases the platform lock, per property 5.
func (m *LockManager) Reevaluate(reg *Registry) {
	needed := m.NeededLockUID(reg) >= 0
	if needed && !m.held {
		m.lock.Acquire()
		m.held = true
	} else if !needed && m.held {
		m.lock.Release()
		m.held = false
	}
}

// Held reports the manager's current view of whether the lock is held.
func (m *LockManager) Held() bool { return m.held }

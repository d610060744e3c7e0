package webcrypto

import (
	"sync"
	"sync/atomic"
)

// KeyType is the role a CryptoKey plays.
type KeyType string

const (
	KeyTypeSecret  KeyType = "secret"
	KeyTypePrivate KeyType = "private"
	KeyTypePublic  KeyType = "public"
)

// Key usage names.
const (
	UsageEncrypt    = "encrypt"
	UsageDecrypt    = "decrypt"
	UsageSign       = "sign"
	UsageVerify     = "verify"
	UsageDeriveKey  = "deriveKey"
	UsageDeriveBits = "deriveBits"
	UsageWrapKey    = "wrapKey"
	UsageUnwrapKey  = "unwrapKey"
)

// cid addresses one slot of the key arena. The generation makes a stale cid
// unable to alias a reused slot.
type cid struct {
	index uint32
	gen   uint32
}

type keySlot struct {
	gen  uint32
	ref  KeyRef
	refs int
	live bool
}

// keyArena is the sole owner of every provider-side key reference the facade
// holds. Slots are refcounted so role views of one generated pair share a
// single provider object.
type keyArena struct {
	mu    sync.Mutex
	slots []keySlot
	free  []uint32
}

func newKeyArena() *keyArena { return &keyArena{} }

func (a *keyArena) add(ref KeyRef) cid {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[idx]
		s.ref = ref
		s.refs = 1
		s.live = true
		return cid{index: idx, gen: s.gen}
	}
	a.slots = append(a.slots, keySlot{ref: ref, refs: 1, live: true})
	return cid{index: uint32(len(a.slots) - 1), gen: 0}
}

func (a *keyArena) lookup(c cid) (*keySlot, error) {
	if int(c.index) >= len(a.slots) {
		return nil, newValidationError("invalid key handle")
	}
	s := &a.slots[c.index]
	if !s.live || s.gen != c.gen {
		return nil, newValidationError("key handle is disposed")
	}
	return s, nil
}

func (a *keyArena) resolve(c cid) (KeyRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.lookup(c)
	if err != nil {
		return nil, err
	}
	return s.ref, nil
}

// retain registers another view of the slot behind c.
func (a *keyArena) retain(c cid) (cid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.lookup(c)
	if err != nil {
		return cid{}, err
	}
	s.refs++
	return c, nil
}

// release drops one reference. When the last reference goes away the slot is
// recycled under a new generation and the provider reference is returned so
// the caller can release it provider-side.
func (a *keyArena) release(c cid) (KeyRef, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.lookup(c)
	if err != nil {
		return nil, false
	}
	s.refs--
	if s.refs > 0 {
		return nil, false
	}
	ref := s.ref
	s.ref = nil
	s.live = false
	s.gen++
	a.free = append(a.free, c.index)
	return ref, true
}

func (a *keyArena) liveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := range a.slots {
		if a.slots[i].live {
			n++
		}
	}
	return n
}

// CryptoKey is an opaque handle to key material resident in the Provider.
// The raw bytes never enter this process unless the Provider exports them.
type CryptoKey struct {
	algorithm   Algorithm
	extractable bool
	usages      []string
	keyType     KeyType

	subtle   *SubtleCrypto
	id       cid
	disposed atomic.Bool
}

// Algorithm returns the descriptor the key was created or imported under,
// collapsed to its bare name where the record carried no other fields.
func (k *CryptoKey) Algorithm() Algorithm { return k.algorithm }

// Extractable reports whether the key's raw bytes may ever leave the Provider.
func (k *CryptoKey) Extractable() bool { return k.extractable }

// Usages returns a copy of the operations the key may participate in.
func (k *CryptoKey) Usages() []string {
	return append([]string(nil), k.usages...)
}

// Type returns the key's role.
func (k *CryptoKey) Type() KeyType { return k.keyType }

// Dispose releases the provider-side resource behind the handle. It is
// idempotent; a disposed handle fails any later operation.
func (k *CryptoKey) Dispose() {
	if k.disposed.Swap(true) {
		return
	}
	if ref, last := k.subtle.keys.release(k.id); last {
		k.subtle.provider.ReleaseKey(ref)
	}
}

// KeyPair is the result of generateKey: two role views over one
// provider-side key pair.
type KeyPair struct {
	PrivateKey *CryptoKey
	PublicKey  *CryptoKey
}

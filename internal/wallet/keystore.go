package wallet

import (
	"crypto/ecdsa"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type entry struct {
	key       *ecdsa.PrivateKey
	mfaSecret string
}

// Keystore maps addresses to their keys and MFA secrets.
type Keystore struct {
	mu      sync.RWMutex
	entries map[common.Address]entry
}

func NewKeystore() *Keystore {
	return &Keystore{entries: make(map[common.Address]entry)}
}

func (k *Keystore) put(addr common.Address, e entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entries[addr] = e
}

func (k *Keystore) get(addr common.Address) (entry, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.entries[addr]
	return e, ok
}

func (k *Keystore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

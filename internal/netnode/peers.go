package netnode

import (
	"fmt"
	"sync"
)

// Peers is a node's view of the overlay: every descriptor it has
// learned of via the rendezvous or a later "n" forward. ByRole and
// ByPubkey are carried over from original_source's find_peer_by_clsname
// / find_peer_by_pubkey, used by the double-spend adversary to locate
// its colluding SPV client and the vendor.
type Peers struct {
	mu   sync.RWMutex
	list []Descriptor
}

// NewPeers returns an empty peer registry.
func NewPeers() *Peers {
	return &Peers{}
}

// Add appends d if no peer with the same address is already known.
func (p *Peers) Add(d Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.list {
		if existing.Address == d.Address {
			return
		}
	}
	p.list = append(p.list, d)
}

// All returns a snapshot of every known peer.
func (p *Peers) All() []Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Descriptor, len(p.list))
	copy(out, p.list)
	return out
}

// ByRole returns every known peer with the given role.
func (p *Peers) ByRole(role Role) []Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Descriptor
	for _, d := range p.list {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}

// ByPubkey returns the peer with the given public key, or an error if
// none is known.
func (p *Peers) ByPubkey(pubkey string) (Descriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, d := range p.list {
		if d.PubKey == pubkey {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("netnode: no peer with pubkey %s", pubkey)
}

func addrOf(d Address) string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

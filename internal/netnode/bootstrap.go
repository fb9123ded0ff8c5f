package netnode

import (
	"fmt"

	"github.com/coinmesh/ledgerd/internal/chainjson"
)

// Bootstrap performs a node's startup handshake with the rendezvous at
// rendezvousAddr: request the current peer list, populate a registry
// from it, then announce self so later-joining nodes learn about this
// one too.
func Bootstrap(rendezvousAddr string, self Descriptor) (*Peers, error) {
	frame, err := SendRequest(rendezvousAddr, TagAddressRequest, nil)
	if err != nil {
		return nil, fmt.Errorf("netnode: bootstrap address request: %w", err)
	}

	var reply AddressListReply
	if err := chainjson.Unmarshal(frame.Body, &reply); err != nil {
		return nil, fmt.Errorf("netnode: bootstrap: unmarshal address list: %w", err)
	}

	peers := NewPeers()
	for _, d := range reply.Addresses {
		peers.Add(d)
	}

	selfBody, err := chainjson.Marshal(self)
	if err != nil {
		return nil, fmt.Errorf("netnode: bootstrap: marshal self descriptor: %w", err)
	}
	if err := SendFireAndForget(rendezvousAddr, TagPeerAnnounce, selfBody); err != nil {
		return nil, fmt.Errorf("netnode: bootstrap: announce self: %w", err)
	}

	return peers, nil
}

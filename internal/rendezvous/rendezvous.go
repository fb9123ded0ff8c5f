// Package rendezvous implements the single well-known bootstrap
// service every node contacts on startup: an append-only registry of
// node descriptors that replies to "a" with the whole list and, on a
// new "n" registration, fans the new descriptor out to everyone
// already registered.
package rendezvous

import (
	"sync"

	"go.uber.org/zap"

	"github.com/coinmesh/ledgerd/internal/chainjson"
	"github.com/coinmesh/ledgerd/internal/netnode"
)

// Server is the rendezvous's dispatcher. It is not fault-tolerant and
// is a single point of failure by design, per spec.md §6.2.
type Server struct {
	logger *zap.Logger

	mu        sync.Mutex
	addresses []netnode.Descriptor
}

// New returns an empty rendezvous server.
func New(logger *zap.Logger) *Server {
	return &Server{logger: logger}
}

// Dispatch implements netnode.Dispatcher.
func (s *Server) Dispatch(tag netnode.Tag, body []byte) ([]byte, bool) {
	switch tag {
	case netnode.TagAddressRequest:
		return s.handleAddressRequest()
	case netnode.TagPeerAnnounce:
		s.handlePeerAnnounce(body)
		return nil, false
	default:
		s.logger.Debug("rendezvous ignoring unexpected tag", zap.Int("tag", int(tag)))
		return nil, false
	}
}

func (s *Server) handleAddressRequest() ([]byte, bool) {
	s.mu.Lock()
	snapshot := make([]netnode.Descriptor, len(s.addresses))
	copy(snapshot, s.addresses)
	s.mu.Unlock()

	body, err := chainjson.Marshal(netnode.AddressListReply{Addresses: snapshot})
	if err != nil {
		s.logger.Error("marshal address list reply", zap.Error(err))
		return nil, false
	}
	return body, true
}

func (s *Server) handlePeerAnnounce(body []byte) {
	var d netnode.Descriptor
	if err := chainjson.Unmarshal(body, &d); err != nil {
		s.logger.Debug("dropping malformed peer announcement", zap.Error(err))
		return
	}

	s.mu.Lock()
	for _, existing := range s.addresses {
		if existing.Address == d.Address {
			s.mu.Unlock()
			return
		}
	}
	previouslyRegistered := make([]netnode.Descriptor, len(s.addresses))
	copy(previouslyRegistered, s.addresses)
	s.addresses = append(s.addresses, d)
	s.mu.Unlock()

	s.logger.Info("registered new peer",
		zap.String("pubkey", d.PubKey), zap.String("role", string(d.Role)))

	announceBody, err := chainjson.Marshal(d)
	if err != nil {
		s.logger.Error("marshal peer announcement for forward", zap.Error(err))
		return
	}
	broadcaster := netnode.NewBroadcaster(s.logger)
	broadcaster.FireAndForget(previouslyRegistered, netnode.TagPeerAnnounce, announceBody)
}

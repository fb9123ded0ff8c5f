package netnode

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// broadcastWorkers bounds how many peers a single broadcast dials
// concurrently. original_source uses a 5-worker thread pool for the
// same purpose; a fixed small pool here keeps a single slow peer from
// serializing the rest of the fan-out, per spec.md §9's "Broadcast
// correctness" note.
const broadcastWorkers = 5

// Broadcaster fans a message out to a peer set with bounded
// concurrency, tolerating per-peer send failures independently. The
// target list is supplied per call, not held by the broadcaster, since
// every caller already has its own view of who to reach (a full peer
// registry, a role-filtered subset, or a one-off list of stragglers).
type Broadcaster struct {
	logger *zap.Logger
}

// NewBroadcaster returns a broadcaster that logs through logger.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{logger: logger}
}

// FireAndForget sends tag/body to every peer in targets without
// waiting for or collecting any reply.
func (b *Broadcaster) FireAndForget(targets []Descriptor, tag Tag, body []byte) {
	sem := make(chan struct{}, broadcastWorkers)
	var wg sync.WaitGroup
	for _, peer := range targets {
		peer := peer
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := SendFireAndForget(addrOf(peer.Address), tag, body); err != nil {
				b.logger.Debug("broadcast send failed",
					zap.String("peer", addrOf(peer.Address)),
					zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

// Reply pairs a peer with the body it sent back.
type Reply struct {
	Peer Descriptor
	Body []byte
}

// Request sends a request-tag frame to every peer in targets and
// collects whatever replies come back, dropping peers that fail or
// don't answer rather than letting them block the others. Every call
// gets its own correlation id so a fan-out's scattered debug lines can
// be grepped back together.
func (b *Broadcaster) Request(targets []Descriptor, tag Tag, body []byte) []Reply {
	reqID := uuid.NewString()
	sem := make(chan struct{}, broadcastWorkers)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var replies []Reply

	for _, peer := range targets {
		peer := peer
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			frame, err := SendRequest(addrOf(peer.Address), tag, body)
			if err != nil {
				b.logger.Debug("broadcast request failed",
					zap.String("request_id", reqID),
					zap.String("peer", addrOf(peer.Address)),
					zap.Error(err))
				return
			}
			mu.Lock()
			replies = append(replies, Reply{Peer: peer, Body: frame.Body})
			mu.Unlock()
		}()
	}
	wg.Wait()
	b.logger.Debug("broadcast request complete",
		zap.String("request_id", reqID),
		zap.Int("targets", len(targets)),
		zap.Int("replies", len(replies)))
	return replies
}

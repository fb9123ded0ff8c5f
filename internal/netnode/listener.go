package netnode

import (
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// acceptWorkers bounds how many inbound connections are handled at
// once, the listener side of the same "bound concurrency" requirement
// broadcast fan-out follows.
const acceptWorkers = 32

// perPeerRate and perPeerBurst throttle how often a single remote
// address may open a connection, the per-peer inbound message throttle
// the domain stack calls for (grounded on the teacher's pubsub.go,
// which rate-limits inbound gossip the same way).
const (
	perPeerRate  = 20 // messages per second
	perPeerBurst = 40
)

// Dispatcher handles one decoded frame and optionally produces a reply
// body (for the "a", "r" and "x" request tags).
type Dispatcher interface {
	Dispatch(tag Tag, body []byte) (response []byte, hasResponse bool)
}

// Listener accepts one short-lived connection per inbound message,
// reads its frame, dispatches it, and writes a reply if the tag calls
// for one.
type Listener struct {
	ln         net.Listener
	dispatcher Dispatcher
	logger     *zap.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	sem chan struct{}
}

// NewListener binds addr and returns a listener ready to Serve.
func NewListener(addr string, dispatcher Dispatcher, logger *zap.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		ln:         ln,
		dispatcher: dispatcher,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
		sem:        make(chan struct{}, acceptWorkers),
	}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop until the listener is closed.
func (l *Listener) Serve() error {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return err
		}
		l.sem <- struct{}{}
		go func() {
			defer func() { <-l.sem }()
			l.handle(conn)
		}()
	}
}

// Close stops the accept loop.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func (l *Listener) limiterFor(remote string) *rate.Limiter {
	host := remote
	if i := strings.LastIndex(remote, ":"); i >= 0 {
		host = remote[:i]
	}

	l.limitersMu.Lock()
	defer l.limitersMu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(perPeerRate, perPeerBurst)
		l.limiters[host] = lim
	}
	return lim
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	if !l.limiterFor(remote).Allow() {
		l.logger.Warn("dropping connection over rate limit", zap.String("peer", remote))
		return
	}

	c := NewConn(conn)
	frame, err := c.ReadFrame()
	if err != nil {
		l.logger.Debug("dropping malformed frame", zap.String("peer", remote), zap.Error(err))
		return
	}

	response, hasResponse := l.dispatcher.Dispatch(frame.Tag, frame.Body)
	if !hasResponse {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(response); err != nil {
		l.logger.Debug("failed to write reply", zap.String("peer", remote), zap.Error(err))
	}
}

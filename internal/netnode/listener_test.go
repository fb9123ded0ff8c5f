package netnode

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type echoDispatcher struct {
	lastTag Tag
}

func (e *echoDispatcher) Dispatch(tag Tag, body []byte) ([]byte, bool) {
	e.lastTag = tag
	if tag == TagBalanceRequest {
		return []byte("7"), true
	}
	return nil, false
}

func TestListenerDispatchesRequest(t *testing.T) {
	d := &echoDispatcher{}
	ln, err := NewListener("127.0.0.1:0", d, zap.NewNop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer ln.Close()
	go ln.Serve()

	frame, err := SendRequest(ln.Addr().String(), TagBalanceRequest, []byte(`{"identifier":"k"}`))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(frame.Body) != "7" {
		t.Errorf("reply = %q, want %q", frame.Body, "7")
	}
}

func TestListenerDispatchesFireAndForgetFrame(t *testing.T) {
	d := &echoDispatcher{}
	ln, err := NewListener("127.0.0.1:0", d, zap.NewNop())
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	defer ln.Close()
	go ln.Serve()

	if err := SendFireAndForget(ln.Addr().String(), TagBlock, []byte("{}")); err != nil {
		t.Fatalf("SendFireAndForget: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if d.lastTag != TagBlock {
		t.Errorf("dispatcher saw tag %q, want %q", d.lastTag, TagBlock)
	}
}

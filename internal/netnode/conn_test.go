package netnode

import (
	"net"
	"testing"
	"time"
)

func TestRequestReplyRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		c := NewConn(conn)
		frame, err := c.ReadFrame()
		if err != nil {
			return
		}
		if frame.Tag != TagBalanceRequest {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.Write([]byte("42"))
	}()

	frame, err := SendRequest(ln.Addr().String(), TagBalanceRequest, []byte(`{"identifier":"abc"}`))
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(frame.Body) != "42" {
		t.Errorf("reply body = %q, want %q", frame.Body, "42")
	}
}

func TestFireAndForgetDoesNotBlockOnNoReply(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	received := make(chan Frame, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		c := NewConn(conn)
		frame, err := c.ReadFrame()
		if err == nil {
			received <- frame
		}
	}()

	if err := SendFireAndForget(ln.Addr().String(), TagTransaction, []byte(`{"tx_json":"x"}`)); err != nil {
		t.Fatalf("SendFireAndForget: %v", err)
	}

	select {
	case frame := <-received:
		if frame.Tag != TagTransaction {
			t.Errorf("tag = %q, want %q", frame.Tag, TagTransaction)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}
}

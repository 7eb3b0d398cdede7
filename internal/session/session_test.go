package session

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/baccuslab/blds/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionDecodesRequests(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	s := New(serverConn, testLogger())
	out := make(chan Envelope, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, out)

	if _, ok := recv(t, out).Event.(Connected); !ok {
		t.Fatal("expected Connected as the first event")
	}

	send := func(typ string, body []byte) {
		if err := wire.WriteFrame(clientConn, typ, body); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	send("create-source", []byte("/tmp/rec.h5"))
	ev := recv(t, out)
	cs, ok := ev.Event.(CreateSource)
	if !ok || cs.Location != "/tmp/rec.h5" {
		t.Fatalf("event = %#v", ev.Event)
	}

	send("set", append([]byte("save-file\n"), []byte("out.h5")...))
	ev = recv(t, out)
	sp, ok := ev.Event.(SetServerParam)
	if !ok || sp.Param != "save-file" || string(sp.Raw) != "out.h5" {
		t.Fatalf("event = %#v", ev.Event)
	}

	body := wire.PutFloat32(nil, 1.5)
	body = wire.PutFloat32(body, 2.5)
	send("get-data", body)
	ev = recv(t, out)
	gd, ok := ev.Event.(GetData)
	if !ok || gd.Start != 1.5 || gd.Stop != 2.5 {
		t.Fatalf("event = %#v", ev.Event)
	}

	send("get-all-data", []byte{1})
	ev = recv(t, out)
	ga, ok := ev.Event.(GetAllData)
	if !ok || !ga.Requested {
		t.Fatalf("event = %#v", ev.Event)
	}

	send("not-a-real-type", nil)
	ev = recv(t, out)
	if _, ok := ev.Event.(ProtocolFault); !ok {
		t.Fatalf("event = %#v, want ProtocolFault", ev.Event)
	}
}

func TestSessionSendResponses(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	s := New(serverConn, testLogger())

	go s.SendSourceCreateResponse(true, "")

	r := bufio.NewReader(clientConn)
	frame, err := wire.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Type != "source-created" {
		t.Fatalf("Type = %q, want source-created", frame.Type)
	}
	ok, _, err := wire.GetBool(frame.Body)
	if err != nil || !ok {
		t.Fatalf("body = %v, err %v", frame.Body, err)
	}
}

func TestPendingRequestQueue(t *testing.T) {
	s := &Session{}
	s.AddPendingRequest(PendingRequest{Start: 0, Stop: 1})
	s.AddPendingRequest(PendingRequest{Start: 1, Stop: 2})
	s.AddPendingRequest(PendingRequest{Start: 5, Stop: 6})

	if n := s.NumServicable(1.5); n != 1 {
		t.Fatalf("NumServicable(1.5) = %d, want 1", n)
	}
	if n := s.NumServicable(2); n != 2 {
		t.Fatalf("NumServicable(2) = %d, want 2", n)
	}

	r, ok := s.PopNextRequest()
	if !ok || r.Start != 0 || r.Stop != 1 {
		t.Fatalf("PopNextRequest = %+v, %v", r, ok)
	}

	s.SetAllData(true)
	if !s.RequestedAllData() {
		t.Fatal("RequestedAllData() = false after SetAllData(true)")
	}
}

func recv(t *testing.T, ch <-chan Envelope) Envelope {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Envelope{}
	}
}

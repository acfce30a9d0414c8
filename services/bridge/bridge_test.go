package bridge

import (
	"context"
	"io"
	"testing"
	"time"

	"modesp/bus"
)

// duplex glues two pipes into one io.ReadWriteCloser.
type duplex struct {
	io.Reader
	io.WriteCloser
}

func (d duplex) Close() error { return d.WriteCloser.Close() }

func newLink() (local, far duplex) {
	lr, fw := io.Pipe()
	fr, lw := io.Pipe()
	return duplex{Reader: lr, WriteCloser: lw}, duplex{Reader: fr, WriteCloser: fw}
}

func startBridge(t *testing.T) (*bus.Bus, duplex, context.CancelFunc) {
	t.Helper()
	local, far := newLink()
	RegisterTransport("test_pipe", func(map[string]any) (Transport, error) {
		return transportFunc(func(context.Context) (io.ReadWriteCloser, error) {
			return local, nil
		}), nil
	})

	b := bus.NewBus(64)
	ctx, cancel := context.WithCancel(context.Background())
	go Start(ctx, b.NewConnection("bridge"))

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "bridge"), map[string]any{
		"transport": "test_pipe",
		"topics":    []any{"state"},
	}, true))

	waitForState(t, b, "up")
	return b, far, cancel
}

type transportFunc func(ctx context.Context) (io.ReadWriteCloser, error)

func (f transportFunc) Open(ctx context.Context) (io.ReadWriteCloser, error) { return f(ctx) }
func (f transportFunc) String() string                                       { return "test_pipe" }

func waitForState(t *testing.T, b *bus.Bus, level string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := b.Retained(topicState); ok {
			if m := msg.Payload.(map[string]any); m["level"] == level {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("bridge never reached state %q", level)
}

func TestBridgeForwardsAllowedTopics(t *testing.T) {
	b, far, cancel := startBridge(t)
	defer cancel()

	pub := b.NewConnection("pub")
	pub.Publish(pub.NewMessage(bus.T("state", "sensor", "chamber_temp"), map[string]any{
		"value": 4.5,
	}, true))
	pub.Publish(pub.NewMessage(bus.T("command", "compressor"), true, false))

	var dec Decoder
	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := far.Read(buf)
		if err != nil {
			t.Fatalf("far read: %v", err)
		}
		dec.Feed(buf[:n])
		if topic, payload, retained, ok := dec.Next(); ok {
			want := bus.Topic{"state", "sensor", "chamber_temp"}
			if !topic.Equal(want) {
				t.Fatalf("forwarded topic %v, want %v", topic, want)
			}
			if !retained {
				t.Fatal("retained flag lost in transit")
			}
			m := payload.(map[any]any)
			if m["value"] != 4.5 {
				t.Fatalf("payload = %v", m)
			}
			return
		}
	}
	t.Fatal("no frame arrived at the far side")
}

func TestBridgeInjectsRemoteCommands(t *testing.T) {
	b, far, cancel := startBridge(t)
	defer cancel()

	sub := b.NewConnection("listener").Subscribe(bus.T("command", "compressor"))

	if err := WriteFrame(far, bus.Topic{"command", "compressor"}, true, false); err != nil {
		t.Fatalf("far write: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != true {
			t.Fatalf("payload = %v", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote command never reached the bus")
	}
}

func TestBridgeInjectsRemoteStateUnderRemotePrefix(t *testing.T) {
	b, far, cancel := startBridge(t)
	defer cancel()

	sub := b.NewConnection("listener").Subscribe(bus.T("remote", "gateway", "clock"))

	if err := WriteFrame(far, bus.Topic{"gateway", "clock"}, uint64(12345), false); err != nil {
		t.Fatalf("far write: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != uint64(12345) {
			t.Fatalf("payload = %v", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote state never reached the bus")
	}
}

func TestBridgeRejectsConfigWithoutTopics(t *testing.T) {
	b := bus.NewBus(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, b.NewConnection("bridge"))

	cfg := b.NewConnection("cfg")
	cfg.Publish(cfg.NewMessage(bus.T("config", "bridge"), map[string]any{
		"transport": "test_pipe",
	}, true))

	waitForState(t, b, "error")
}

// Package bridge forwards selected bus topics over a framed byte stream and
// injects frames arriving from the far side back into the bus, so a host
// console or gateway can observe and drive the controller.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"modesp/bus"
	"modesp/drivers/sensor"
	"modesp/x/timex"
)

var (
	topicConfig = bus.Topic{"config", "bridge"}
	topicState  = bus.Topic{"bridge", "state"}
)

// Config is the decoded {"config","bridge"} section.
type Config struct {
	// Topics lists local topic prefixes forwarded to the far side.
	Topics []string
	// Transport names a registered transport ("pipe", "serial").
	Transport string
	// Options is passed through to the transport dialler.
	Options map[string]any
}

func decodeConfig(payload any) (Config, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return Config{}, errors.New("bridge config is not an object")
	}
	cfg := Config{
		Transport: sensor.BlobString(m, "transport", "serial"),
	}
	if opts, ok := m["options"].(map[string]any); ok {
		cfg.Options = opts
	}
	topics, _ := m["topics"].([]any)
	for _, tp := range topics {
		if s, ok := tp.(string); ok && s != "" {
			cfg.Topics = append(cfg.Topics, s)
		}
	}
	if len(cfg.Topics) == 0 {
		return cfg, errors.New("bridge config has no topics")
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Transport opens the byte stream the bridge runs over.
type Transport interface {
	Open(ctx context.Context) (io.ReadWriteCloser, error)
	String() string
}

type transportFactory func(options map[string]any) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]transportFactory{}
)

// RegisterTransport adds a named transport. Platform files register "serial";
// tests register in-memory pipes.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(name string, options map[string]any) (Transport, error) {
	regMu.RLock()
	f, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, errors.New("unknown transport type: " + name)
	}
	return f(options)
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection

	mu     sync.Mutex
	curRun context.CancelFunc
}

// Start runs the bridge supervisor. It blocks until ctx is cancelled,
// reconfiguring the link whenever {"config","bridge"} changes.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{conn: conn}
	s.run(ctx)
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	defer cfgSub.Unsubscribe()

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport, cfg.Options)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rwc, err := tr.Open(ctx)
		if err != nil {
			if !s.retry(ctx, backoff(), "dial_failed_retrying", err) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, cfg, rwc)
		_ = rwc.Close()
		if err == nil || ctx.Err() != nil {
			return
		}
		if !s.retry(ctx, backoff(), "link_lost_retrying", err) {
			return
		}
	}
}

func (s *Service) retry(ctx context.Context, delay time.Duration, status string, err error) bool {
	s.publishState("degraded", status, err)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// handleLink owns one live link: local messages on the allowed topics go out
// as frames, decoded incoming frames go onto the bus under "remote".
func (s *Service) handleLink(ctx context.Context, cfg Config, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := s.conn
	subs := make([]*bus.Subscription, 0, len(cfg.Topics))
	for _, prefix := range cfg.Topics {
		pattern := append(bus.Parse(prefix), bus.All)
		subs = append(subs, conn.Subscribe(pattern))
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	readErr := make(chan error, 1)
	go s.readLoop(rwc, readErr)

	cases := mergeChannels(ctx, subs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case msg := <-cases:
			if err := WriteFrame(rwc, msg.Topic, msg.Payload, msg.Retained); err != nil {
				return err
			}
		}
	}
}

// readLoop feeds stream bytes into the decoder and republishes complete
// frames under the "remote" prefix. Injected commands keep their topic so
// "command.compressor" from the far side reaches the actuator module.
func (s *Service) readLoop(r io.Reader, done chan<- error) {
	var dec Decoder
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				topic, payload, retained, ok := dec.Next()
				if !ok {
					break
				}
				s.inject(topic, payload, retained)
			}
		}
		if err != nil {
			if err == io.EOF {
				done <- nil
			} else {
				done <- err
			}
			return
		}
	}
}

func (s *Service) inject(topic bus.Topic, payload any, retained bool) {
	if len(topic) > 0 && topic[0] == "command" {
		s.conn.Publish(s.conn.NewMessage(topic, payload, retained))
		return
	}
	remote := append(bus.Topic{"remote"}, topic...)
	s.conn.Publish(s.conn.NewMessage(remote, payload, retained))
}

// mergeChannels fans several subscription channels into one.
func mergeChannels(ctx context.Context, subs []*bus.Subscription) <-chan *bus.Message {
	out := make(chan *bus.Message, 16)
	for _, sub := range subs {
		go func(sub *bus.Subscription) {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-sub.Channel():
					if !ok {
						return
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}(sub)
	}
	return out
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  timex.NowMs(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

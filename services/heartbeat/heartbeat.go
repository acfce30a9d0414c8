// Package heartbeat publishes a periodic liveness message with the module
// health scores so remote observers can spot a wedged controller.
package heartbeat

import (
	"context"
	"time"

	"modesp/bus"
	"modesp/x/timex"
)

var (
	topicConfig    = bus.Topic{"config", "heartbeat"}
	topicHeartbeat = bus.Topic{"state", "system", "heartbeat"}
)

// HealthSource reports a 0-100 module health score.
type HealthSource interface {
	HealthScore() int
}

type Service struct {
	Sensors   HealthSource
	Actuators HealthSource

	startMs int64
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfig)
	defer cfgSub.Unsubscribe()

	s.startMs = timex.NowMs()
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if interval, ok := m["interval"].(float64); ok && interval > 0 {
					tick.Reset(time.Duration(interval) * time.Second)
					println("Info: heartbeat interval set to", int(interval), "seconds")
				}
			}
		}
	}
}

func (s *Service) beat(conn *bus.Connection) {
	payload := map[string]any{
		"uptime_ms": timex.NowMs() - s.startMs,
	}
	if s.Sensors != nil {
		payload["sensors_health"] = s.Sensors.HealthScore()
	}
	if s.Actuators != nil {
		payload["actuators_health"] = s.Actuators.HealthScore()
	}
	conn.Publish(conn.NewMessage(topicHeartbeat, payload, true))
	println("Info: heartbeat")
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

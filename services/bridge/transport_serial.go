//go:build linux

package bridge

import (
	"context"
	"errors"
	"io"

	"go.bug.st/serial"

	"modesp/drivers/sensor"
)

func init() {
	RegisterTransport("serial", newSerialTransport)
}

// serialTransport opens a real serial port on hosts bridging to the
// controller, options {"port": "/dev/ttyUSB0", "baud": 115200}.
type serialTransport struct {
	port string
	baud int
}

func newSerialTransport(options map[string]any) (Transport, error) {
	port := sensor.BlobString(options, "port", "")
	if port == "" {
		return nil, errors.New("serial transport requires a port option")
	}
	return &serialTransport{
		port: port,
		baud: sensor.BlobInt(options, "baud", 115200),
	}, nil
}

func (t *serialTransport) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{BaudRate: t.baud}
	p, err := serial.Open(t.port, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (t *serialTransport) String() string { return "serial " + t.port }

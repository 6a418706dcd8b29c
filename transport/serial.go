package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialConfig holds serial port configuration parameters.
type SerialConfig struct {
	// Device is the serial port address (e.g. "COM3" on Windows,
	// "/dev/ttyS0" on Linux).
	Device string
	// BaudRate is the serial port speed (e.g. 9600, 19200, 115200).
	BaudRate int
	// DataBits is the number of data bits, usually 7 or 8.
	DataBits int
	// Parity is "none", "odd", or "even".
	Parity string
	// StopBits is 1 or 2.
	StopBits int
}

// OpenSerial opens the configured serial port as a Transport.
func OpenSerial(cfg SerialConfig) (Transport, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   mapParity(cfg.Parity),
		StopBits: mapStopBits(cfg.StopBits),
	}

	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", cfg.Device, err)
	}

	return &serialPort{port: port}, nil
}

// mapParity maps a config string to serial.Parity. Invalid values fall
// back to no parity.
func mapParity(p string) serial.Parity {
	switch p {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}

// mapStopBits maps a stop-bit count to serial.StopBits. Invalid values
// fall back to one stop bit.
func mapStopBits(s int) serial.StopBits {
	if s == 2 {
		return serial.TwoStopBits
	}

	return serial.OneStopBit
}

// serialPort adapts a go.bug.st/serial port to the Transport contract.
//
// The library reports a read timeout as a zero-byte read with a nil
// error; Read normalizes that into ErrReadTimeout so callers can treat
// serial and TCP deadlines uniformly.
type serialPort struct {
	mu       sync.Mutex
	port     serial.Port
	deadline time.Time
}

var _ Transport = (*serialPort)(nil)

func (p *serialPort) Read(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		return n, err
	}

	if n == 0 {
		return 0, ErrReadTimeout
	}

	return n, nil
}

func (p *serialPort) Write(data []byte) (int, error) {
	return p.port.Write(data)
}

func (p *serialPort) Close() error {
	return p.port.Close()
}

func (p *serialPort) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deadline = t

	if t.IsZero() {
		return p.port.SetReadTimeout(serial.NoTimeout)
	}

	d := time.Until(t)
	if d < 0 {
		d = 0
	}

	return p.port.SetReadTimeout(d)
}

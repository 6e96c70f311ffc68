// Package serialport opens the sensor's serial line and lists candidate
// ports.
package serialport

import (
	"fmt"
	"io"
	"sort"
	"time"

	"drgex/internal/config"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Opener opens the same named port on every call, so a session can close
// and reopen it after losing frame alignment.
type Opener struct {
	name        string
	mode        *serial.Mode
	readTimeout time.Duration
}

// NewOpener builds an Opener from the serial configuration.
func NewOpener(cfg config.SerialConfig) *Opener {
	return &Opener{
		name: cfg.Port,
		mode: &serial.Mode{
			BaudRate: cfg.BaudRate,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		},
		readTimeout: cfg.ReadTimeout,
	}
}

// Name returns the port identifier.
func (o *Opener) Name() string {
	return o.name
}

// Open opens the port, applies the read timeout and drops any bytes
// buffered before the open.
func (o *Opener) Open() (io.ReadCloser, error) {
	port, err := serial.Open(o.name, o.mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", o.name, err)
	}

	if err := port.SetReadTimeout(o.readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", o.name, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", o.name, err)
	}

	return port, nil
}

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string // Device path or COM name
	Description  string // USB product string when known
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// String formats the port the way the port picker shows it.
func (p PortInfo) String() string {
	if p.Description == "" {
		return p.Name
	}
	return fmt.Sprintf("%s: %s", p.Name, p.Description)
}

// ListPorts returns the serial ports on this machine sorted by name.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			Description:  d.Product,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

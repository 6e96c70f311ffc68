package serialport

import (
	"path/filepath"
	"testing"
	"time"

	"drgex/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestNewOpenerMode(t *testing.T) {
	o := NewOpener(config.SerialConfig{Port: "/dev/ttyACM3", BaudRate: 1500000, ReadTimeout: time.Second})

	assert.Equal(t, "/dev/ttyACM3", o.Name())
	require.NotNil(t, o.mode)
	assert.Equal(t, 1500000, o.mode.BaudRate)
	assert.Equal(t, 8, o.mode.DataBits)
	assert.Equal(t, serial.NoParity, o.mode.Parity)
	assert.Equal(t, serial.OneStopBit, o.mode.StopBits)
	assert.Equal(t, time.Second, o.readTimeout)
}

func TestOpenMissingPort(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "ttyNOPE0")
	o := NewOpener(config.SerialConfig{Port: missing, BaudRate: 9600, ReadTimeout: time.Second})

	_, err := o.Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), missing)
}

func TestPortInfoString(t *testing.T) {
	assert.Equal(t, "COM3", PortInfo{Name: "COM3"}.String())
	assert.Equal(t, "/dev/ttyUSB0: CP2102 USB to UART", PortInfo{Name: "/dev/ttyUSB0", Description: "CP2102 USB to UART"}.String())
}

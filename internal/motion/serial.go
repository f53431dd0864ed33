package motion

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens the controller port at 8N1.
func OpenSerial(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("motion: open %s: %w", name, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

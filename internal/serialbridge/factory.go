package serialbridge

import (
	"go.bug.st/serial"
)

// RealFactory opens hardware serial ports through go.bug.st/serial. Reads
// block until data arrives; Channel.Open applies the read timeout to ports
// it drives.
type RealFactory struct{}

func (RealFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	opts, err := opts.Normalise()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	return serial.Open(path, mode)
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

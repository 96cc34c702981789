package logger

import (
	"io"
	"os"
	"strings"

	"github.com/jacobsa/go-serial/serial"
)

// SerialBaud is the rate used when the log destination is a serial device.
const SerialBaud = 115200

// IsSerial reports whether path names a serial device rather than a file.
func IsSerial(path string) bool {
	return strings.HasPrefix(path, "/dev/tty") ||
		strings.HasPrefix(path, "/dev/cu.") ||
		strings.HasPrefix(strings.ToUpper(path), "COM")
}

// OpenSink opens the log destination. "-" or "stdout" is standard output,
// "stderr" standard error, serial devices are opened at SerialBaud 8N1 and
// anything else is a file opened for appending.
func OpenSink(path string) (io.WriteCloser, error) {
	switch path {
	case "", "-", "stdout":
		return nopCloser{os.Stdout}, nil
	case "stderr":
		return nopCloser{os.Stderr}, nil
	}

	if IsSerial(path) {
		return serial.Open(serial.OpenOptions{
			PortName:        path,
			BaudRate:        SerialBaud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
		})
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

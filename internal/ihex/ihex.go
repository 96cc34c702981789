// Package ihex loads Intel HEX text into program memory.
package ihex

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChecksum is returned when a record's checksum byte does not match.
	ErrChecksum = errors.New("ihex: checksum mismatch")
	// ErrFormat is returned for records that cannot be decoded.
	ErrFormat = errors.New("ihex: malformed record")
)

// Record types.
const (
	TypeData           = 0x00
	TypeEOF            = 0x01
	TypeExtSegment     = 0x02
	TypeExtLinear      = 0x04
	maxLineLen         = 559
	maxRecordBytes     = 272
	minRecordBytes     = 5
	recordHeaderLength = 4
)

// CodeLoader is the program memory the records are written to.
type CodeLoader interface {
	LoadCode(data []byte, addr uint32) error
}

// Record is one decoded line.
type Record struct {
	Type    byte
	Address uint16
	Data    []byte
}

// Load parses text and writes every data record into dst. Lines that do not
// start with ':' are skipped. Loading stops at the first end-of-file record.
// Nothing is rolled back on error: records before the failing line stay
// loaded.
func Load(dst CodeLoader, text string) error {
	var segment uint32
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(line) == 0 || line[0] != ':' {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}

		switch rec.Type {
		case TypeData:
			if len(rec.Data) == 0 {
				break
			}
			if err := dst.LoadCode(rec.Data, segment|uint32(rec.Address)); err != nil {
				return fmt.Errorf("line %d: %w", n+1, err)
			}
		case TypeEOF:
			return nil
		case TypeExtSegment:
			if len(rec.Data) >= 2 {
				segment = (uint32(rec.Data[0])<<8 | uint32(rec.Data[1])) << 4
			}
		case TypeExtLinear:
			if len(rec.Data) >= 2 {
				segment = (uint32(rec.Data[0])<<8 | uint32(rec.Data[1])) << 16
			}
		}
	}
	return nil
}

// ParseLine decodes a single ':'-prefixed record and verifies its checksum.
func ParseLine(line string) (Record, error) {
	if !strings.HasPrefix(line, ":") {
		return Record{}, fmt.Errorf("%w: missing ':'", ErrFormat)
	}
	digits := line[1:]
	if len(digits) >= maxLineLen+1 {
		return Record{}, fmt.Errorf("%w: line too long", ErrFormat)
	}
	raw, err := decode(digits)
	if err != nil {
		return Record{}, err
	}
	if len(raw) < minRecordBytes {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrFormat, len(raw))
	}

	var sum byte
	for _, b := range raw[:len(raw)-1] {
		sum += b
	}
	if -sum != raw[len(raw)-1] {
		return Record{}, fmt.Errorf("%w: got %02X want %02X", ErrChecksum, raw[len(raw)-1], -sum)
	}

	count := int(raw[0])
	if len(raw) < count+minRecordBytes {
		return Record{}, fmt.Errorf("%w: count %d in %d bytes", ErrFormat, count, len(raw))
	}
	return Record{
		Type:    raw[3],
		Address: uint16(raw[1])<<8 | uint16(raw[2]),
		Data:    raw[recordHeaderLength : recordHeaderLength+count],
	}, nil
}

func decode(s string) ([]byte, error) {
	if len(s)/2 > maxRecordBytes {
		return nil, fmt.Errorf("%w: record too long", ErrFormat)
	}
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return out, nil
}

package can

import (
	"github.com/pkg/errors"
)

const bitsPerByte = 8

// Signal describes a little endian bit field inside a classic CAN payload.
type Signal struct {
	Scale  float64
	Offset float64
	Start  uint8 //first bit, counted from bit 0 of byte 0
	Length uint8
	Signed bool
}

func (s Signal) Extract(data []byte) (float64, error) {
	if s.Length == 0 || s.Length > 32 {
		return 0, errors.Errorf("signal length %d not supported", s.Length)
	}
	if len(data) > 8 {
		return 0, errors.Errorf("payload of %d bytes is not a classic frame", len(data))
	}
	end := int(s.Start) + int(s.Length)
	if end > len(data)*bitsPerByte {
		return 0, errors.Errorf("signal bits %d-%d outside %d byte payload", s.Start, end-1, len(data))
	}

	var raw uint64
	for i := len(data) - 1; i >= 0; i-- {
		raw = raw<<bitsPerByte | uint64(data[i])
	}
	raw = (raw >> s.Start) & (1<<s.Length - 1)

	value := float64(raw)
	if s.Signed && raw&(1<<(s.Length-1)) != 0 {
		value = float64(int64(raw) - int64(1)<<s.Length)
	}
	return value*s.Scale + s.Offset, nil
}

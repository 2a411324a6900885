package can

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// SLCAN bitrate commands, S0 through S8.
var slcanBitrates = map[int]byte{
	10000:   '0',
	20000:   '1',
	50000:   '2',
	100000:  '3',
	125000:  '4',
	250000:  '5',
	500000:  '6',
	800000:  '7',
	1000000: '8',
}

// bitrateCommand returns the "Sn\r" command for a CAN bitrate.
func bitrateCommand(bitrate int) ([]byte, error) {
	c, ok := slcanBitrates[bitrate]
	if !ok {
		return nil, fmt.Errorf("can: unsupported slcan bitrate %d", bitrate)
	}
	return []byte{'S', c, '\r'}, nil
}

// EncodeSLCAN renders a frame as a Lawicel transmit command.
func EncodeSLCAN(f Frame) ([]byte, error) {
	if f.Len > 8 {
		return nil, fmt.Errorf("%w: dlc %d", ErrInvalidFrame, f.Len)
	}
	var buf []byte
	if f.Extended {
		if f.ID > MaxExtendedID {
			return nil, fmt.Errorf("%w: id %X", ErrInvalidFrame, f.ID)
		}
		buf = fmt.Appendf(buf, "T%08X%d", f.ID, f.Len)
	} else {
		if f.ID > 0x7FF {
			return nil, fmt.Errorf("%w: id %X", ErrInvalidFrame, f.ID)
		}
		buf = fmt.Appendf(buf, "t%03X%d", f.ID, f.Len)
	}
	for _, b := range f.Payload() {
		buf = fmt.Appendf(buf, "%02X", b)
	}
	return append(buf, '\r'), nil
}

// ParseSLCAN decodes one received line, without its terminator.
func ParseSLCAN(line []byte) (Frame, error) {
	var f Frame
	if len(line) == 0 {
		return f, fmt.Errorf("%w: empty line", ErrInvalidFrame)
	}

	var idLen int
	switch line[0] {
	case 'T':
		idLen, f.Extended = 8, true
	case 't':
		idLen = 3
	default:
		return f, fmt.Errorf("%w: unexpected command %q", ErrInvalidFrame, line[0])
	}

	if len(line) < 1+idLen+1 {
		return f, fmt.Errorf("%w: short line %q", ErrInvalidFrame, line)
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return f, fmt.Errorf("%w: id: %v", ErrInvalidFrame, err)
	}
	if f.Extended && id > MaxExtendedID {
		return f, fmt.Errorf("%w: id %X", ErrInvalidFrame, id)
	}
	f.ID = uint32(id)

	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return f, fmt.Errorf("%w: dlc %q", ErrInvalidFrame, dlc)
	}
	f.Len = dlc - '0'

	data := line[2+idLen:]
	if len(data) < int(f.Len)*2 {
		return f, fmt.Errorf("%w: want %d data bytes", ErrInvalidFrame, f.Len)
	}
	// Trailing characters are an optional timestamp.
	if _, err := hex.Decode(f.Data[:f.Len], data[:int(f.Len)*2]); err != nil {
		return f, fmt.Errorf("%w: data: %v", ErrInvalidFrame, err)
	}
	return f, nil
}

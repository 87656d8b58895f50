package embedding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/x448/float16"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/persistence"
)

// Precision is the on-disk element type of a binary dump.
type Precision string

const (
	Float32 Precision = "float32"
	Float16 Precision = "float16"
)

const (
	binaryMagic   uint32 = 0x52574542 // "RWEB"
	binaryVersion uint16 = 1
	headerPayload        = 4 + 2 + 1 + 4 + 8
)

var (
	ErrUnknownPrecision = errors.New("embedding: unknown precision")
	ErrBadFile          = errors.New("embedding: malformed binary file")
)

func (p Precision) code() (byte, error) {
	switch p {
	case Float32, "":
		return 4, nil
	case Float16:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPrecision, p)
}

func precisionFromCode(c byte) (Precision, error) {
	switch c {
	case 4:
		return Float32, nil
	case 2:
		return Float16, nil
	}
	return "", fmt.Errorf("%w: element width %d", ErrUnknownPrecision, c)
}

// WriteBinary writes m as a header frame followed by one frame per node.
// Float16 halves the file size at reduced precision.
func WriteBinary(path string, m *Map, p Precision) error {
	width, err := p.code()
	if err != nil {
		return err
	}

	fw, err := persistence.CreateFile(path)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	header := make([]byte, headerPayload)
	binary.LittleEndian.PutUint32(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint16(header[4:6], binaryVersion)
	header[6] = width
	binary.LittleEndian.PutUint32(header[7:11], uint32(m.Dim()))
	binary.LittleEndian.PutUint64(header[11:19], uint64(m.Len()))
	if err := fw.WriteFrame(persistence.OpHeader, header); err != nil {
		fw.Abort()
		return fmt.Errorf("embedding: %w", err)
	}

	payload := make([]byte, 4+int(width)*m.Dim())
	m.Ascend(func(node graph.NodeID, vec []float32) bool {
		binary.LittleEndian.PutUint32(payload[0:4], uint32(node))
		body := payload[4:]
		for i, v := range vec {
			if width == 2 {
				binary.LittleEndian.PutUint16(body[i*2:], float16.Fromfloat32(v).Bits())
			} else {
				binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(v))
			}
		}
		err = fw.WriteFrame(persistence.OpVector, payload)
		return err == nil
	})
	if err != nil {
		fw.Abort()
		return fmt.Errorf("embedding: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}

// ReadBinary loads a file written by WriteBinary.
func ReadBinary(path string) (*Map, Precision, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("embedding: %w", err)
	}
	defer f.Close()
	return DecodeBinary(f)
}

// DecodeBinary reads a binary dump from r.
func DecodeBinary(r io.Reader) (*Map, Precision, error) {
	frame, _, err := persistence.ReadFrame(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: header: %v", ErrBadFile, err)
	}
	h := frame.Payload
	if frame.Op != persistence.OpHeader || len(h) != headerPayload ||
		binary.LittleEndian.Uint32(h[0:4]) != binaryMagic {
		return nil, "", fmt.Errorf("%w: missing header", ErrBadFile)
	}
	if v := binary.LittleEndian.Uint16(h[4:6]); v != binaryVersion {
		return nil, "", fmt.Errorf("%w: version %d", ErrBadFile, v)
	}
	p, err := precisionFromCode(h[6])
	if err != nil {
		return nil, "", err
	}
	width := int(h[6])
	dim := int(binary.LittleEndian.Uint32(h[7:11]))
	count := binary.LittleEndian.Uint64(h[11:19])

	m := NewMap(dim)
	for {
		frame, _, err := persistence.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrBadFile, err)
		}
		if frame.Op != persistence.OpVector || len(frame.Payload) != 4+width*dim {
			return nil, "", fmt.Errorf("%w: unexpected %s frame of %d bytes", ErrBadFile, frame.Op, len(frame.Payload))
		}
		node := graph.NodeID(int32(binary.LittleEndian.Uint32(frame.Payload[0:4])))
		body := frame.Payload[4:]
		vec := make([]float32, dim)
		for i := range vec {
			if width == 2 {
				vec[i] = float16.Frombits(binary.LittleEndian.Uint16(body[i*2:])).Float32()
			} else {
				vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
			}
		}
		if err := m.Set(node, vec); err != nil {
			return nil, "", err
		}
	}
	if uint64(m.Len()) != count {
		return nil, "", fmt.Errorf("%w: header announces %d vectors, found %d", ErrBadFile, count, m.Len())
	}
	return m, p, nil
}

// Package persistence implements the CRC-checked frame format used by binary
// embedding files.
package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// MagicByte marks the start of every frame.
	MagicByte = 0xA5

	// HeaderSize is the fixed frame prefix:
	// 1 byte (Magic) + 1 byte (OpCode) + 4 bytes (Length) + 4 bytes (CRC32).
	HeaderSize = 10

	// MaxPayloadSize bounds a single frame so a corrupt length cannot force
	// a huge allocation.
	MaxPayloadSize = 64 << 20
)

// OpCode identifies the payload type of a frame.
type OpCode byte

const (
	// OpHeader carries file-level metadata and must be the first frame.
	OpHeader OpCode = 0x01
	// OpVector carries one node id and its vector.
	OpVector OpCode = 0x02
)

func (op OpCode) String() string {
	switch op {
	case OpHeader:
		return "header"
	case OpVector:
		return "vector"
	default:
		return fmt.Sprintf("opcode(0x%02x)", byte(op))
	}
}

var (
	// ErrInvalidMagic indicates the stream lost synchronization or is not a frame file.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within the frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended inside a frame.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrFrameTooLarge indicates a length field above MaxPayloadSize.
	ErrFrameTooLarge = errors.New("frame payload too large")
)

// Frame is one decoded record.
type Frame struct {
	Op      OpCode
	Payload []byte
}

// FrameWriter encodes frames onto an io.Writer.
type FrameWriter struct {
	w      io.Writer
	header [HeaderSize]byte
}

// NewFrameWriter creates a writer that wraps an underlying io.Writer. For
// files, w should be buffered so header and payload share a syscall.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes the payload into a binary frame and writes it.
// Frame Format: [Magic(1)][OpCode(1)][Length(4)][CRC(4)][Payload(N)]
func (fw *FrameWriter) WriteFrame(op OpCode, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	fw.header[0] = MagicByte
	fw.header[1] = byte(op)
	binary.LittleEndian.PutUint32(fw.header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(fw.header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := fw.w.Write(fw.header[:]); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// ReadFrame reads and validates the next frame. It returns io.EOF only when
// the stream ends exactly at a frame boundary; the int result is the number
// of bytes consumed.
func ReadFrame(r io.Reader) (Frame, int, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, 0, io.EOF
		}
		return Frame{}, 0, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return Frame{}, HeaderSize, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])
	if length > MaxPayloadSize {
		return Frame{}, HeaderSize, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, HeaderSize, ErrIncompleteFrame
	}

	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return Frame{}, HeaderSize + int(length), ErrChecksumMismatch
	}

	return Frame{Op: OpCode(header[1]), Payload: payload}, HeaderSize + int(length), nil
}

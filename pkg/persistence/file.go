package persistence

import (
	"bufio"
	"fmt"
	"os"
)

// FileWriter writes frames to a temporary file next to path and moves it
// into place on Close, so readers never observe a half-written file.
type FileWriter struct {
	file   *os.File
	buf    *bufio.Writer
	frames *FrameWriter
	path   string
	tmp    string
	count  int
}

// CreateFile opens a fresh temporary file for path.
func CreateFile(path string) (*FileWriter, error) {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	buf := bufio.NewWriterSize(file, 1<<16)
	return &FileWriter{
		file:   file,
		buf:    buf,
		frames: NewFrameWriter(buf),
		path:   path,
		tmp:    tmp,
	}, nil
}

// WriteFrame appends one frame.
func (f *FileWriter) WriteFrame(op OpCode, payload []byte) error {
	if err := f.frames.WriteFrame(op, payload); err != nil {
		return err
	}
	f.count++
	return nil
}

// Frames returns the number of frames written so far.
func (f *FileWriter) Frames() int { return f.count }

// Path returns the final file path.
func (f *FileWriter) Path() string { return f.path }

// Close flushes, syncs and renames the temporary file over path.
func (f *FileWriter) Close() error {
	if err := f.buf.Flush(); err != nil {
		f.Abort()
		return err
	}
	if err := f.file.Sync(); err != nil {
		f.Abort()
		return err
	}
	if err := f.file.Close(); err != nil {
		_ = os.Remove(f.tmp)
		return err
	}
	if err := os.Rename(f.tmp, f.path); err != nil {
		_ = os.Remove(f.tmp)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

// Abort discards the temporary file.
func (f *FileWriter) Abort() {
	_ = f.file.Close()
	_ = os.Remove(f.tmp)
}

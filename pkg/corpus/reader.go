package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// EndOfSentence is the token emitted for every newline.
const EndOfSentence = "</s>"

// MaxTokenLength truncates pathological tokens.
const MaxTokenLength = 100

var endOfSentence = []byte(EndOfSentence)

// Reader tokenizes a corpus stream. Space, tab and newline separate tokens,
// carriage returns are ignored, and each newline yields EndOfSentence.
type Reader struct {
	br   *bufio.Reader
	word []byte
	// pendingEOS is set when a newline terminated a token and must be
	// reported on the next call.
	pendingEOS bool
}

// NewReader wraps r with a buffered tokenizer.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 1<<16), word: make([]byte, 0, MaxTokenLength)}
}

// Reset discards buffered state and switches to r.
func (r *Reader) Reset(src io.Reader) {
	r.br.Reset(src)
	r.word = r.word[:0]
	r.pendingEOS = false
}

// ReadToken returns the next token. The returned slice is only valid until the
// next call. At end of input it returns io.EOF; a final token without a
// trailing separator is still returned first.
func (r *Reader) ReadToken() ([]byte, error) {
	if r.pendingEOS {
		r.pendingEOS = false
		return endOfSentence, nil
	}
	r.word = r.word[:0]
	for {
		ch, err := r.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(r.word) > 0 {
				return r.word, nil
			}
			return nil, err
		}
		switch ch {
		case '\r':
			continue
		case ' ', '\t', '\n':
			if len(r.word) > 0 {
				r.pendingEOS = ch == '\n'
				return r.word, nil
			}
			if ch == '\n' {
				return endOfSentence, nil
			}
			continue
		}
		if len(r.word) < MaxTokenLength-1 {
			r.word = append(r.word, ch)
		}
	}
}

// FileSize returns the size of the file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("corpus: %w", err)
	}
	return info.Size(), nil
}

// ShardOffset is the byte offset where shard id of n starts in a file of the
// given size. The offset may fall inside a token; the first partial token of
// a shard is read like any other.
func ShardOffset(size int64, n, id int) int64 {
	return size / int64(n) * int64(id)
}

// OpenShard opens path positioned at the start of shard id of n.
func OpenShard(path string, n, id int) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("corpus: failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("corpus: %w", err)
	}
	off := ShardOffset(info.Size(), n, id)
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("corpus: seek shard %d: %w", id, err)
	}
	return f, off, nil
}

// Package corpus reads and writes the plain-text walk corpus: one walk per
// line, node ids separated by single spaces.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/walk"
)

// EncodeWalks writes every walk in w, walk index outer and start node inner,
// stopping each line at the first sentinel. Each id is followed by a space.
func EncodeWalks(dst io.Writer, w *walk.Walks) error {
	bw := bufio.NewWriterSize(dst, 1<<20)
	buf := make([]byte, 0, 16)
	for wi := 0; wi < w.WalksPerNode; wi++ {
		for n := 0; n < w.NumNodes; n++ {
			for _, id := range w.Walk(wi, graph.NodeID(n)) {
				buf = strconv.AppendInt(buf[:0], int64(id), 10)
				buf = append(buf, ' ')
				if _, err := bw.Write(buf); err != nil {
					return err
				}
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteWalks creates (or truncates) path and writes w into it.
func WriteWalks(path string, w *walk.Walks) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("corpus: failed to create %s: %w", path, err)
	}
	if err := EncodeWalks(f, w); err != nil {
		_ = f.Close()
		return fmt.Errorf("corpus: writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("corpus: closing %s: %w", path, err)
	}
	return nil
}

package embedding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

// WriteText writes one "<node> <f0> ... <f(d-1)>" line per node in id order,
// preceded by a "<count> <dim>" line when header is set.
func WriteText(w io.Writer, m *Map, header bool) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	if header {
		if _, err := fmt.Fprintf(bw, "%d %d\n", m.Len(), m.Dim()); err != nil {
			return err
		}
	}

	var err error
	buf := make([]byte, 0, 64)
	m.Ascend(func(node graph.NodeID, vec []float32) bool {
		buf = strconv.AppendInt(buf[:0], int64(node), 10)
		for _, v := range vec {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, float64(v), 'f', -1, 32)
		}
		buf = append(buf, '\n')
		_, err = bw.Write(buf)
		return err == nil
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// WriteTextFile creates path and calls WriteText.
func WriteTextFile(path string, m *Map, header bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := WriteText(f, m, header); err != nil {
		_ = f.Close()
		return fmt.Errorf("embedding: writing %s: %w", path, err)
	}
	return f.Close()
}

package embedding

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/talnish/iiswc21-rwalk/pkg/graph"
)

// DefaultKMeansIterations is the number of assignment rounds.
const DefaultKMeansIterations = 10

// Assignment is the cluster of one node.
type Assignment struct {
	Node  graph.NodeID
	Class int
}

// KMeans clusters the vectors of m into k classes by cosine similarity to
// normalized centroids. Nodes start round-robin in id order.
func KMeans(m *Map, k, iterations int) ([]Assignment, error) {
	if k <= 0 {
		return nil, fmt.Errorf("embedding: class count must be positive, got %d", k)
	}
	dim := m.Dim()
	nodes := make([]graph.NodeID, 0, m.Len())
	vecs := make([][]float64, 0, m.Len())
	m.Ascend(func(node graph.NodeID, vec []float32) bool {
		v := make([]float64, dim)
		for i, x := range vec {
			v[i] = float64(x)
		}
		nodes = append(nodes, node)
		vecs = append(vecs, v)
		return true
	})

	class := make([]int, len(vecs))
	for i := range class {
		class[i] = i % k
	}

	cent := make([][]float64, k)
	for i := range cent {
		cent[i] = make([]float64, dim)
	}
	count := make([]float64, k)

	for it := 0; it < iterations; it++ {
		for c := range cent {
			clear(cent[c])
			count[c] = 1
		}
		for i, v := range vecs {
			floats.Add(cent[class[i]], v)
			count[class[i]]++
		}
		for c := range cent {
			floats.Scale(1/count[c], cent[c])
			if norm := floats.Norm(cent[c], 2); norm > 0 {
				floats.Scale(1/norm, cent[c])
			}
		}
		for i, v := range vecs {
			best, bestSim := 0, -10.0
			for c := range cent {
				if sim := floats.Dot(cent[c], v); sim > bestSim {
					best, bestSim = c, sim
				}
			}
			class[i] = best
		}
	}

	out := make([]Assignment, len(nodes))
	for i, n := range nodes {
		out[i] = Assignment{Node: n, Class: class[i]}
	}
	slog.Debug("[EMBED] K-means done", "nodes", len(out), "classes", k, "iterations", iterations)
	return out, nil
}

// WriteClasses writes "<node> <class>" lines.
func WriteClasses(w io.Writer, assignments []Assignment) error {
	bw := bufio.NewWriter(w)
	for _, a := range assignments {
		if _, err := fmt.Fprintf(bw, "%d %d\n", a.Node, a.Class); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteClassesFile creates path and calls WriteClasses.
func WriteClassesFile(path string, assignments []Assignment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := WriteClasses(f, assignments); err != nil {
		_ = f.Close()
		return fmt.Errorf("embedding: writing %s: %w", path, err)
	}
	return f.Close()
}

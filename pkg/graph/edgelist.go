package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadEdgeList parses a temporal edge list, one "src dst timestamp [weight]"
// record per line. Blank lines and lines starting with '#' or '%' are skipped.
// The returned node count is max(id)+1.
func ReadEdgeList(r io.Reader) ([]Edge, int, error) {
	var (
		edges   []Edge
		maxNode NodeID = -1
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 || len(fields) > 4 {
			return nil, 0, fmt.Errorf("%w: line %d: expected 3 or 4 fields, got %d", ErrMalformedLine, lineNo, len(fields))
		}

		src, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: src: %v", ErrMalformedLine, lineNo, err)
		}
		dst, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: dst: %v", ErrMalformedLine, lineNo, err)
		}
		ts, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: timestamp: %v", ErrMalformedLine, lineNo, err)
		}
		weight := 1.0
		if len(fields) == 4 {
			if weight, err = strconv.ParseFloat(fields[3], 64); err != nil {
				return nil, 0, fmt.Errorf("%w: line %d: weight: %v", ErrMalformedLine, lineNo, err)
			}
		}
		if src < 0 || dst < 0 {
			return nil, 0, fmt.Errorf("%w: line %d", ErrNegativeNode, lineNo)
		}

		e := Edge{Src: NodeID(src), Dst: NodeID(dst), Time: ts, Weight: weight}
		maxNode = max(maxNode, e.Src, e.Dst)
		edges = append(edges, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("graph: reading edge list: %w", err)
	}
	return edges, int(maxNode) + 1, nil
}

// LoadFile reads a .wel edge list from path and builds a CSR graph.
func LoadFile(path string, symmetrize bool) (*CSR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to open edge list: %w", err)
	}
	defer f.Close()

	edges, numNodes, err := ReadEdgeList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewCSR(numNodes, edges, symmetrize)
}

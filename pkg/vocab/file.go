package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Save writes one "<token> <count>" line per entry in slot order.
func (v *Vocabulary) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range v.Words {
		if _, err := fmt.Fprintf(bw, "%s %d\n", word.Token, word.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the vocabulary to path.
func (v *Vocabulary) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vocab: failed to create %s: %w", path, err)
	}
	if err := v.Save(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("vocab: writing %s: %w", path, err)
	}
	return f.Close()
}

// Read loads a vocabulary saved by Save and finalizes it with opts, so a
// different MinCount may prune it further.
func Read(r io.Reader, opts Options) (*Vocabulary, error) {
	v := New(opts)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("vocab: line %d: expected \"<token> <count>\"", lineNo)
		}
		count, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("vocab: line %d: bad count %q", lineNo, fields[1])
		}
		if err := v.addCount([]byte(fields[0]), count); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: reading vocabulary: %w", err)
	}
	v.Finalize()
	return v, nil
}

// ReadFile loads a saved vocabulary from path.
func ReadFile(path string, opts Options) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: vocabulary file not found: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}


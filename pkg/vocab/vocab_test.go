package vocab

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talnish/iiswc21-rwalk/pkg/corpus"
	"github.com/talnish/iiswc21-rwalk/pkg/graph"
	"github.com/talnish/iiswc21-rwalk/pkg/walk"
)

func smallOptions(minCount int64) Options {
	return Options{MinCount: minCount, HashSize: 1 << 12}
}

func countsOf(v *Vocabulary) map[string]int64 {
	out := make(map[string]int64, len(v.Words))
	for _, w := range v.Words {
		out[w.Token] = w.Count
	}
	return out
}

func TestHashIndexLinearProbing(t *testing.T) {
	words := []Word{{Token: "a"}, {Token: "b"}, {Token: "c"}}
	h := NewHashIndex(1) // every token collides
	assert.Equal(t, 1, h.Capacity())

	h = NewHashIndex(5)
	h.Rebuild(words)
	for i, w := range words {
		assert.Equal(t, i, h.Find(words, []byte(w.Token)))
	}
	assert.Equal(t, -1, h.Find(words, []byte("zz")))
	assert.Equal(t, Hash([]byte("abc"), 1000), hashString("abc", 1000))
}

func TestHashIndexFullTable(t *testing.T) {
	words := []Word{{Token: "a"}, {Token: "b"}, {Token: "c"}}
	h := NewHashIndex(2)
	require.NoError(t, h.Insert("a", 0))
	require.NoError(t, h.Insert("b", 1))
	assert.ErrorIs(t, h.Insert("c", 2), ErrIndexFull)
	assert.Equal(t, -1, h.Find(words, []byte("c")))
	assert.Equal(t, 1, h.Find(words, []byte("b")))
}

func TestTinyHashSizeTerminates(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		v := New(Options{MinCount: 1, HashSize: 1})
		for _, tok := range strings.Fields("a b a c d a e") {
			if err := v.Add([]byte(tok)); err != nil {
				done <- err
				return
			}
		}
		_, err := Read(strings.NewReader("</s> 3\nx 100\ny 100\n"), Options{MinCount: 1, HashSize: 2})
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrIndexFull)
	case <-time.After(5 * time.Second):
		t.Fatal("vocabulary with a tiny hash index did not return")
	}
}

func TestCountsNeverDecreaseWhileStreaming(t *testing.T) {
	v := New(smallOptions(1))
	stream := strings.Fields("3 1 4 1 5 9 2 6 5 3 5 8 9 7 9 3 2 3 8 4 6")
	seen := map[string]int64{}
	for _, tok := range stream {
		require.NoError(t, v.Add([]byte(tok)))
		for _, w := range v.Words[1:] {
			assert.GreaterOrEqual(t, w.Count, seen[w.Token], "token %s", w.Token)
			seen[w.Token] = w.Count
		}
	}
	assert.EqualValues(t, 4, seen["3"])
	assert.EqualValues(t, len(stream), v.CorpusWords)
}

func TestFinalizeSortsAndFilters(t *testing.T) {
	v, err := Learn(strings.NewReader("7 7 7 8 8 9\n7 8 10\n"), smallOptions(2))
	require.NoError(t, err)

	require.Equal(t, corpus.EndOfSentence, v.Words[0].Token)
	assert.EqualValues(t, 2, v.Words[0].Count)
	assert.Equal(t, []string{"7", "8"}, []string{v.Words[1].Token, v.Words[2].Token})
	assert.Len(t, v.Words, 3)
	for _, w := range v.Words[1:] {
		assert.GreaterOrEqual(t, w.Count, int64(2))
	}
	assert.EqualValues(t, 2+4+3, v.TrainWords)
	assert.EqualValues(t, 11, v.CorpusWords)

	assert.Equal(t, 1, v.Search([]byte("7")))
	assert.Equal(t, -1, v.Search([]byte("9")), "filtered tokens are no longer indexed")
	assert.ErrorIs(t, v.Add([]byte("7")), ErrFrozen)
}

func TestSentinelSurvivesMinCount(t *testing.T) {
	v, err := Learn(strings.NewReader("1 1 1 1"), smallOptions(3))
	require.NoError(t, err)
	require.Len(t, v.Words, 2)
	assert.Equal(t, corpus.EndOfSentence, v.Words[0].Token)
	assert.Zero(t, v.Words[0].Count)
}

func TestReductionPrunesRareTokens(t *testing.T) {
	// 10 slots: a reduction runs as soon as more than 7 entries exist.
	v := New(Options{MinCount: 1, HashSize: 10})
	for i := 0; i < 5; i++ {
		require.NoError(t, v.Add([]byte("hot")))
	}
	for i := 0; i < 6; i++ {
		require.NoError(t, v.Add([]byte("cold"+strconv.Itoa(i))))
	}

	require.Equal(t, 1, v.Reductions())
	assert.Equal(t, corpus.EndOfSentence, v.Words[0].Token)
	assert.Equal(t, 0, v.Search([]byte(corpus.EndOfSentence)))
	require.Len(t, v.Words, 2)
	assert.Equal(t, "hot", v.Words[1].Token)
	assert.Equal(t, 1, v.Search([]byte("hot")))
	assert.Equal(t, -1, v.Search([]byte("cold0")))

	// The next reduction uses a higher threshold.
	for i := 0; i < 2; i++ {
		require.NoError(t, v.Add([]byte("warm")))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, v.Add([]byte("chill"+strconv.Itoa(i))))
	}
	require.Equal(t, 2, v.Reductions())
	assert.Equal(t, -1, v.Search([]byte("warm")), "count 2 <= threshold 2")
	assert.Equal(t, 1, v.Search([]byte("hot")))
}

func TestCorpusRoundTripMatchesWalkCounts(t *testing.T) {
	g, err := graph.NewCSR(6, []graph.Edge{
		{Src: 0, Dst: 1, Time: 1}, {Src: 0, Dst: 2, Time: 2}, {Src: 1, Dst: 3, Time: 3},
		{Src: 2, Dst: 3, Time: 4}, {Src: 3, Dst: 4, Time: 6}, {Src: 3, Dst: 0, Time: 5},
		{Src: 4, Dst: 5, Time: 9},
	}, false)
	require.NoError(t, err)
	opts := walk.DefaultOptions()
	opts.WalksPerNode = 7
	opts.MaxLength = 4
	s, err := walk.NewSampler(g, opts)
	require.NoError(t, err)
	walks, err := s.Sample(context.Background())
	require.NoError(t, err)

	direct := map[string]int64{corpus.EndOfSentence: int64(walks.Len())}
	for wi := 0; wi < walks.WalksPerNode; wi++ {
		for n := 0; n < walks.NumNodes; n++ {
			for _, id := range walks.Walk(wi, graph.NodeID(n)) {
				direct[strconv.Itoa(int(id))]++
			}
		}
	}

	path := filepath.Join(t.TempDir(), "walks.txt")
	require.NoError(t, corpus.WriteWalks(path, walks))
	v, err := LearnFile(path, smallOptions(1))
	require.NoError(t, err)

	assert.Equal(t, direct, countsOf(v))
}

func TestSaveAndRead(t *testing.T) {
	v, err := Learn(strings.NewReader("5 5 6\n5 6 7\n"), smallOptions(1))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, v.Save(&buf))
	assert.Equal(t, "</s> 2\n5 3\n6 2\n7 1\n", buf.String())

	back, err := Read(bytes.NewReader(buf.Bytes()), smallOptions(2))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"</s>": 2, "5": 3, "6": 2}, countsOf(back))

	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, v.SaveFile(path))
	fromFile, err := ReadFile(path, smallOptions(1))
	require.NoError(t, err)
	assert.Equal(t, countsOf(v), countsOf(fromFile))

	_, err = Read(strings.NewReader("5 x\n"), smallOptions(1))
	assert.Error(t, err)
}

func TestAssignCodes(t *testing.T) {
	v, err := Learn(strings.NewReader("1 1 1 2 2 3\n"), smallOptions(1))
	require.NoError(t, err)
	require.NoError(t, v.AssignCodes())
	for _, w := range v.Words {
		assert.NotEmpty(t, w.Code, w.Token)
		assert.Len(t, w.Path, len(w.Code))
	}

	fresh := New(smallOptions(1))
	assert.Error(t, fresh.AssignCodes())
}

func TestLearnFileMissing(t *testing.T) {
	_, err := LearnFile(filepath.Join(t.TempDir(), "nope.txt"), smallOptions(1))
	assert.Error(t, err)
}

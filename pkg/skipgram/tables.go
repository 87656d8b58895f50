package skipgram

import (
	"math"

	"github.com/talnish/iiswc21-rwalk/pkg/vocab"
)

const (
	ExpTableSize = 1000
	MaxExp       = 6
	unigramPower = 0.75
)

// expTable holds the logistic function precomputed over [-MaxExp, MaxExp).
var expTable = func() [ExpTableSize]float32 {
	var t [ExpTableSize]float32
	for i := range t {
		e := math.Exp((float64(i)/ExpTableSize*2 - 1) * MaxExp)
		t[i] = float32(e / (e + 1))
	}
	return t
}()

// sigmoid looks f up in expTable. The caller must check |f| < MaxExp.
func sigmoid(f float32) float32 {
	i := int((f + MaxExp) * (ExpTableSize / MaxExp / 2))
	if i >= ExpTableSize {
		i = ExpTableSize - 1
	}
	return expTable[i]
}

// lcg advances the linear congruential generator shared by all random draws.
func lcg(next uint64) uint64 {
	return next*25214903917 + 11
}

// BuildUnigramTable fills a table of size entries where each vocabulary
// index occupies a share proportional to count^0.75.
func BuildUnigramTable(words []vocab.Word, size int) []int32 {
	if len(words) == 0 || size <= 0 {
		return nil
	}
	var total float64
	for _, w := range words {
		total += math.Pow(float64(w.Count), unigramPower)
	}
	table := make([]int32, size)
	i := 0
	d1 := math.Pow(float64(words[0].Count), unigramPower) / total
	for a := range table {
		table[a] = int32(i)
		if float64(a)/float64(size) > d1 {
			i++
			if i < len(words) {
				d1 += math.Pow(float64(words[i].Count), unigramPower) / total
			}
		}
		if i >= len(words) {
			i = len(words) - 1
		}
	}
	return table
}

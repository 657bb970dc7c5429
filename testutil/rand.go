package testutil

import (
	"math/rand"

	fuzz "github.com/google/gofuzz"
	. "github.com/onsi/ginkgo"
)

var RandSource = rand.NewSource(GinkgoRandomSeed())
var Rand = rand.New(RandSource)
var Fuzzer = func() *fuzz.Fuzzer {
	f := fuzz.New()
	f.RandSource(RandSource)
	return f
}()
var Fuzz = Fuzzer.Fuzz

// RandLine returns random printable string without line separators.
func RandLine(maxLen int) string {
	var s string
	Fuzzer.NilChance(0).Fuzz(&s)
	line := make([]byte, 0, len(s))
	for i := 0; i < len(s) && len(line) < maxLen; i++ {
		if b := s[i]; b >= ' ' && b < 127 {
			line = append(line, b)
		}
	}
	return string(line)
}

var FastRand = fastRandReader{}

type fastRandReader struct{}

func (fastRandReader) Read(p []byte) (int, error) {
	if len(p) > 0 {
		p[0] = byte(Rand.Int())
	}
	return len(p), nil
}

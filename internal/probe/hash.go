package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/trial"
)

// Hash computes the SHA-256 digest of a Size-byte payload on each step.
type Hash struct {
	base
	Size int

	payload []byte
}

func (w *Hash) Kind() string { return config.KindHash }

func (w *Hash) RunStep(context.Context) (any, error) {
	sum := sha256.Sum256(w.payload)
	return hex.EncodeToString(sum[:8]), nil
}

func (w *Hash) Hooks() trial.Hooks {
	return trial.Hooks{
		BeforeTest: func(context.Context, trial.State) error {
			w.payload = pattern(w.Size)
			return nil
		},
		DiscoverStep: w.discover,
		ResultRow:    throughputRow(w.Size),
	}
}

// pattern returns n deterministic bytes.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + 7)
	}
	return b
}

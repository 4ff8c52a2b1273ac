// Package garden holds the timing rules of the rose garden.
package garden

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// WateringCooldown is how long a user must wait between waterings.
	WateringCooldown = 24 * time.Hour
	// NearBloom is how close to blooming a rose may be before watering it
	// is pointless.
	NearBloom = 10 * time.Minute

	burstMean  = 2 * time.Hour
	dayMean    = 22*time.Hour + 45*time.Minute
	twoDayMean = 46*time.Hour + 45*time.Minute
	gaussSigma = 90 * time.Minute
)

// Grower draws rose growing periods. It is safe for concurrent use.
type Grower struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGrower wraps a random source; tests pass a fixed seed.
func NewGrower(src rand.Source) *Grower {
	return &Grower{rnd: rand.New(src)}
}

// NewSeededGrower seeds from the wall clock.
func NewSeededGrower() *Grower {
	return NewGrower(rand.NewSource(time.Now().UnixNano()))
}

// RandomGrowingPeriod picks one of three distributions with equal odds:
// a short exponential burst, a ~1 day gaussian or a ~2 day gaussian.
// The population mean is just under 24h.
func (g *Grower) RandomGrowingPeriod() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	var d time.Duration
	switch g.rnd.Intn(3) {
	case 0:
		d = time.Duration(g.rnd.ExpFloat64() * float64(burstMean))
	case 1:
		d = dayMean + time.Duration(g.rnd.NormFloat64()*float64(gaussSigma))
	default:
		d = twoDayMean + time.Duration(g.rnd.NormFloat64()*float64(gaussSigma))
	}
	if d < 0 {
		return 0
	}
	return d
}

// BloomTime is when a rose planted at planted will bloom.
func (g *Grower) BloomTime(planted time.Time) time.Time {
	return planted.Add(g.RandomGrowingPeriod()).UTC().Truncate(time.Millisecond)
}

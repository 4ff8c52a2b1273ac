package garden

import (
	"time"

	"github.com/jeffschecter/Signal/internal/db"
)

// Greenest returns the rose furthest from blooming. Ties go to the lowest id.
func Greenest(roses []db.Rose) *db.Rose {
	var g *db.Rose
	for i := range roses {
		if g == nil || roses[i].Bloomed.After(g.Bloomed) {
			g = &roses[i]
		}
	}
	return g
}

// CanAccelerate reports whether watering r at now would gain anything:
// a rose due within NearBloom, or already bloomed, is left alone.
func CanAccelerate(r *db.Rose, now time.Time) bool {
	return r != nil && r.Bloomed.After(now.Add(NearBloom))
}

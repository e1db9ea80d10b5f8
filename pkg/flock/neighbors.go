package flock

import (
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Neighborhood is the result of a neighbor query for one agent.
// Slices are reused between queries; copy them if they must outlive the next one.
type Neighborhood struct {
	Closest        int   // index of the closest other agent, -1 when alone
	Neighbors      []int // agents closer than NearDistance, or just Closest (see FellBack)
	CollisionRisks []int // agents closer than CollisionDistance
	FellBack       bool  // no agent was near, Neighbors holds only Closest
}

func (nb *Neighborhood) reset() {
	nb.Closest = -1
	nb.Neighbors = nb.Neighbors[:0]
	nb.CollisionRisks = nb.CollisionRisks[:0]
	nb.FellBack = false
}

// QueryNeighbors scans every other agent once, in index order, and fills nb.
// The closest agent is tracked with a strict comparison so the first one
// encountered wins a tie. Membership in Neighbors and CollisionRisks is a
// plain threshold test, independent of closeness. When nobody is within
// NearDistance the single closest agent becomes the only neighbor, so the
// neighbor set is empty only when self is alone.
func QueryNeighbors(self int, positions []geometry.Vector3D, cfg Config, nb *Neighborhood) {
	nb.reset()

	// Pre-calculate squared ranges to avoid Sqrt() calls in the loop
	nearSq := cfg.NearDistance * cfg.NearDistance
	collisionSq := cfg.CollisionDistance * cfg.CollisionDistance
	closestSq := math.MaxFloat64

	me := positions[self]
	for i, other := range positions {
		if i == self {
			continue
		}
		distSq := me.DistanceSquaredTo(other)

		if distSq < closestSq {
			closestSq = distSq
			nb.Closest = i
		}
		if distSq < nearSq {
			nb.Neighbors = append(nb.Neighbors, i)
		}
		if distSq < collisionSq {
			nb.CollisionRisks = append(nb.CollisionRisks, i)
		}
	}

	if len(nb.Neighbors) == 0 && nb.Closest >= 0 {
		nb.Neighbors = append(nb.Neighbors, nb.Closest)
		nb.FellBack = true
	}
}

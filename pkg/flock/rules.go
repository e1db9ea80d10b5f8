package flock

import "github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"

// blendVelocity runs the compute phase for one agent: it reads only the
// committed state of the flock and returns the velocity the agent wants.
//
//	rule 1, matching:   + avg(neighbor velocities) * VelocityMatchingWeight
//	rule 2, centering:  + (avg(neighbor positions) - pos) * FlockCenteringWeight
//	rule 3, avoidance:  + (avg(collision positions) - pos) * CollisionAvoidanceWeight
//	attractor:          + delta * AttractorAttractionWeight                       if |delta| > AttractorAvoidDistance
//	                    - unit(delta) * AttractorAvoidDistance * AttractorAvoidanceWeight  otherwise
func blendVelocity(agents []Agent, self int, nb *Neighborhood, attractor geometry.Vector3D, cfg Config) geometry.Vector3D {
	me := agents[self]
	newVel := me.Velocity

	// Rules 1 and 2 share the neighbor set; it is empty only for a lone agent.
	if len(nb.Neighbors) > 0 {
		var velSum, posSum geometry.Vector3D
		for _, j := range nb.Neighbors {
			velSum = velSum.Add(agents[j].Velocity)
			posSum = posSum.Add(agents[j].Position)
		}
		n := float64(len(nb.Neighbors))
		avgVel := geometry.Vector3D{X: velSum.X / n, Y: velSum.Y / n, Z: velSum.Z / n}
		avgPos := geometry.Vector3D{X: posSum.X / n, Y: posSum.Y / n, Z: posSum.Z / n}

		newVel = newVel.Add(avgVel.Mul(cfg.VelocityMatchingWeight))
		newVel = newVel.Add(avgPos.Sub(me.Position).Mul(cfg.FlockCenteringWeight))
	}

	if len(nb.CollisionRisks) > 0 {
		var posSum geometry.Vector3D
		for _, j := range nb.CollisionRisks {
			posSum = posSum.Add(agents[j].Position)
		}
		n := float64(len(nb.CollisionRisks))
		avgPos := geometry.Vector3D{X: posSum.X / n, Y: posSum.Y / n, Z: posSum.Z / n}
		newVel = newVel.Add(avgPos.Sub(me.Position).Mul(cfg.CollisionAvoidanceWeight))
	}

	return newVel.Add(attractorForce(me.Position, attractor, cfg))
}

// attractorForce pulls proportionally to the distance when far, and pushes
// with a fixed magnitude AttractorAvoidDistance*AttractorAvoidanceWeight when
// within AttractorAvoidDistance. An attractor exactly on the agent yields zero.
func attractorForce(pos, attractor geometry.Vector3D, cfg Config) geometry.Vector3D {
	delta := attractor.Sub(pos)
	avoid := cfg.AttractorAvoidDistance
	if delta.LenSqr() > avoid*avoid {
		return delta.Mul(cfg.AttractorAttractionWeight)
	}
	return delta.Normalize().Mul(-avoid * cfg.AttractorAvoidanceWeight)
}

// clampSpeed applies the speed limits to v. fallback gives the direction to
// use when v is too short to be rescaled (a zero velocity below a positive floor).
func clampSpeed(v, fallback geometry.Vector3D, cfg Config) geometry.Vector3D {
	speedSq := v.LenSqr()
	if speedSq > cfg.MaxSpeed*cfg.MaxSpeed {
		return v.WithLen(cfg.MaxSpeed)
	}
	if speedSq < cfg.MinSpeed*cfg.MinSpeed {
		floor := cfg.MinSpeed
		if cfg.FloorToMaxSpeed {
			floor = cfg.MaxSpeed
		}
		dir := v.Normalize()
		if dir.IsZero() {
			dir = fallback
		}
		return dir.Mul(floor)
	}
	return v
}

// commit runs the commit phase for one agent: blend, clamp, integrate, project
// on the motion plane and derive the heading from the displacement.
func commit(a *Agent, dt float64, cfg Config) {
	vel := a.Velocity.Lerp(a.pendingVelocity, cfg.VelocityBlendFactor)
	a.Velocity = clampSpeed(vel, fallbackDirection(a, cfg.Plane), cfg)

	oldPos := a.Position
	a.Position = cfg.Plane.Project(oldPos.Add(a.Velocity.Mul(dt)))

	if moved := a.Position.Sub(oldPos); !moved.IsZero() {
		a.Heading = moved.Normalize()
	}
}

func fallbackDirection(a *Agent, p geometry.Plane) geometry.Vector3D {
	if dir := a.Velocity.Normalize(); !dir.IsZero() {
		return dir
	}
	if !a.Heading.IsZero() {
		return a.Heading.Normalize()
	}
	u, _ := p.Basis()
	return u
}

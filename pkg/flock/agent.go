package flock

import "github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"

// Agent is one boid. Position, Velocity and Heading are the committed state
// every other agent may read during a step; pendingVelocity is private
// scratch written in the compute phase and consumed in the commit phase.
type Agent struct {
	Position geometry.Vector3D
	Velocity geometry.Vector3D
	Heading  geometry.Vector3D

	pendingVelocity geometry.Vector3D
}

// AgentState is a read-only copy of an agent's committed state, for renderers.
type AgentState struct {
	Index    int               `json:"index"`
	Position geometry.Vector3D `json:"position"`
	Velocity geometry.Vector3D `json:"velocity"`
	Heading  geometry.Vector3D `json:"heading"`
}

// Speed returns the magnitude of the committed velocity.
func (s AgentState) Speed() float64 {
	return s.Velocity.Len()
}

// Yaw returns the heading angle on plane p, see geometry.Plane.Yaw.
func (s AgentState) Yaw(p geometry.Plane) float64 {
	return p.Yaw(s.Heading)
}

func (a *Agent) state(index int) AgentState {
	return AgentState{
		Index:    index,
		Position: a.Position,
		Velocity: a.Velocity,
		Heading:  a.Heading,
	}
}

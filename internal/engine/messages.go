package engine

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Envelope kinds. Every command sent to the flock actor is a structpb.Struct
// {"type": kind, "payload": {...}}; the state query is an emptypb.Empty.
const (
	kindTick   = "tick"
	kindConfig = "config"
	kindReset  = "reset"
	kindStatus = "status"
)

type tickPayload struct {
	DT        float64           `json:"dt"`
	Attractor geometry.Vector3D `json:"attractor"`
}

// Status answers a state query.
type Status struct {
	Steps         uint64       `json:"steps"`
	Agents        int          `json:"agents"`
	SimTime       float64      `json:"simTime"`
	MeanSpeed     float64      `json:"meanSpeed"`
	MeanNeighbors float64      `json:"meanNeighbors"`
	Fallbacks     int          `json:"fallbacks"`
	Config        flock.Config `json:"config"`
}

func encode(kind string, payload any) (*structpb.Struct, error) {
	env := &structpb.Struct{Fields: map[string]*structpb.Value{
		"type": structpb.NewStringValue(kind),
	}}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	body := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, body); err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	env.Fields["payload"] = structpb.NewStructValue(body)
	return env, nil
}

func kindOf(env *structpb.Struct) string {
	return env.GetFields()["type"].GetStringValue()
}

func decode(env *structpb.Struct, payload any) error {
	body := env.GetFields()["payload"].GetStructValue()
	if body == nil {
		return fmt.Errorf("%s message has no payload", kindOf(env))
	}
	raw, err := protojson.Marshal(body)
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", kindOf(env), err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("decoding %s payload: %w", kindOf(env), err)
	}
	return nil
}

func newTick(dt float64, attractor geometry.Vector3D) (*structpb.Struct, error) {
	return encode(kindTick, tickPayload{DT: dt, Attractor: attractor})
}

func newConfigUpdate(cfg flock.Config) (*structpb.Struct, error) {
	return encode(kindConfig, cfg)
}

func newReset() (*structpb.Struct, error) {
	return encode(kindReset, nil)
}

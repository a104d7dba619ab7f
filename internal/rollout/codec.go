package rollout

import (
	"encoding/json"
	"fmt"

	"github.com/codex-web-agent/agent/internal/protocol"
)

// envelope is the on-disk JSON shape for a RolloutItem: a kind
// discriminator plus the item's own encoding, so Decode can dispatch to
// the right concrete type without reflection over protocol's unexported
// marker methods.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes a RolloutItem into its envelope form for storage.
func Encode(item protocol.RolloutItem) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("rollout: encode %s: %w", item.Kind(), err)
	}
	return json.Marshal(envelope{Kind: item.Kind(), Data: data})
}

// Decode parses a stored envelope back into a concrete protocol.RolloutItem.
func Decode(raw []byte) (protocol.RolloutItem, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("rollout: decode envelope: %w", err)
	}

	switch env.Kind {
	case (protocol.SessionMetaRolloutItem{}).Kind():
		var item protocol.SessionMetaRolloutItem
		if err := json.Unmarshal(env.Data, &item); err != nil {
			return nil, err
		}
		return item, nil
	case (protocol.TurnContextRolloutItem{}).Kind():
		var item protocol.TurnContextRolloutItem
		if err := json.Unmarshal(env.Data, &item); err != nil {
			return nil, err
		}
		return item, nil
	case (protocol.ResponseRolloutItem{}).Kind():
		var raw struct {
			Item json.RawMessage `json:"item"`
		}
		if err := json.Unmarshal(env.Data, &raw); err != nil {
			return nil, err
		}
		ri, err := decodeResponseItem(raw.Item)
		if err != nil {
			return nil, err
		}
		return protocol.ResponseRolloutItem{Item: ri}, nil
	case (protocol.CompactedRolloutItem{}).Kind():
		var item protocol.CompactedRolloutItem
		if err := json.Unmarshal(env.Data, &item); err != nil {
			return nil, err
		}
		return item, nil
	case (protocol.EventRolloutItem{}).Kind():
		// Event payloads are persisted for audit/replay only; callers that
		// need the concrete EventMsg type decode Data themselves, since
		// most EventMsg variants carry no further behavior once persisted.
		return protocol.EventRolloutItem{}, nil
	default:
		return nil, fmt.Errorf("rollout: unrecognized item kind %q", env.Kind)
	}
}

func decodeResponseItem(raw json.RawMessage) (protocol.ResponseItem, error) {
	var tagged struct {
		Type string `json:"type,omitempty"`
		Role string `json:"role,omitempty"`
	}
	// MessageItem has no "type" field of its own (Kind() is derived from
	// the Go type, not serialized); probe by shape instead.
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch {
	case probe["role"] != nil:
		var item protocol.MessageItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		return item, nil
	case probe["call_id"] != nil && probe["arguments"] != nil:
		var item protocol.FunctionCallItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		return item, nil
	case probe["call_id"] != nil && probe["output"] != nil:
		var item protocol.FunctionCallOutputItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		return item, nil
	case probe["summary"] != nil:
		var item protocol.ReasoningItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		return item, nil
	default:
		return nil, fmt.Errorf("rollout: unrecognized response item shape")
	}
}

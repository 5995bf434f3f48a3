package domain

import (
	"encoding/json"
	"fmt"
)

// fragmentEnvelope is the serialized form of a Fragment: the variant tag plus
// the variant payload. Used by the response cache and the debug surface.
type fragmentEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalFragments encodes a fragment list as tagged envelopes.
func MarshalFragments(fragments []Fragment) ([]byte, error) {
	envelopes := make([]fragmentEnvelope, 0, len(fragments))
	for _, f := range fragments {
		kind, err := FragmentKind(f)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("marshal %s fragment: %w", kind, err)
		}
		envelopes = append(envelopes, fragmentEnvelope{Kind: kind, Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalFragments decodes tagged envelopes back into fragments. Unknown
// tags are an explicit error, never a silent fallthrough.
func UnmarshalFragments(data []byte) ([]Fragment, error) {
	var envelopes []fragmentEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("unmarshal fragment envelopes: %w", err)
	}

	fragments := make([]Fragment, 0, len(envelopes))
	for _, env := range envelopes {
		f, err := decodeFragment(env)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
	}
	return fragments, nil
}

func decodeFragment(env fragmentEnvelope) (Fragment, error) {
	var (
		f   Fragment
		err error
	)

	switch env.Kind {
	case "text":
		var v TextFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "image":
		var v ImageFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "tool_call":
		var v ToolCallFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "tool_result":
		var v ToolResultFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "error":
		var v ErrorFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "reference":
		var v ReferenceFragment
		err = json.Unmarshal(env.Data, &v)
		f = v
	case "void":
		f = VoidFragment{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFragment, env.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal %s fragment: %w", env.Kind, err)
	}
	return f, nil
}

// messageJSON is the wire shape of Message with enveloped fragments.
type messageJSON struct {
	Fragments json.RawMessage `json:"fragments"`
	Record    Record          `json:"record"`
}

// MarshalJSON implements json.Marshaler with tagged fragment envelopes.
func (m Message) MarshalJSON() ([]byte, error) {
	fragments, err := MarshalFragments(m.Fragments)
	if err != nil {
		return nil, err
	}
	return json.Marshal(messageJSON{Fragments: fragments, Record: m.Record})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fragments, err := UnmarshalFragments(raw.Fragments)
	if err != nil {
		return err
	}
	m.Fragments = fragments
	m.Record = raw.Record
	return nil
}

package message

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/mitchellh/mapstructure"

	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
)

// Envelope is a decoded delivery body. Payload is one of *Interaction,
// *FileOperation, *Registration, *FieldUpdate or *RefillRequest, matching Kind.
type Envelope struct {
	Kind    Kind
	Payload any
}

// schema describes how to recognise one payload type in a generic map.
type schema struct {
	kind     Kind
	required []string
	// actions limits the `action` value. With actionOptional the key may be missing.
	actions        []string
	actionOptional bool
	nested         map[string][]string
	newPayload     func() any
}

// schemas in legacy cascade order.
var schemas = []schema{
	{
		kind:       KindInteraction,
		required:   []string{"user_id", "action"},
		actions:    []string{ActionLike, ActionDislike, ActionSearch},
		newPayload: func() any { return &Interaction{} },
	},
	{
		kind:       KindFile,
		required:   []string{"user_id", "action"},
		actions:    []string{ActionUploadFile, ActionShowFiles},
		newPayload: func() any { return &FileOperation{} },
	},
	{
		kind:           KindRegistration,
		required:       []string{"user", "profile"},
		actions:        []string{ActionRegistration},
		actionOptional: true,
		nested: map[string][]string{
			"user":    {"user_id", "first_name"},
			"profile": {"user_id"},
		},
		newPayload: func() any { return &Registration{} },
	},
	{
		kind:           KindFieldUpdate,
		required:       []string{"user_id", "field", "value"},
		actions:        []string{ActionProfileUpdate},
		actionOptional: true,
		newPayload:     func() any { return &FieldUpdate{} },
	},
	{
		kind:       KindRefill,
		required:   []string{"user_id", "action", "request_type"},
		actions:    []string{ActionUpdateProfileKV},
		newPayload: func() any { return &RefillRequest{} },
	},
}

// byAction maps every known action tag to its schema.
var byAction = func() map[string]*schema {
	m := make(map[string]*schema)
	for i := range schemas {
		for _, a := range schemas[i].actions {
			m[a] = &schemas[i]
		}
	}
	return m
}()

// Decode turns a delivery body into a typed payload.
//
// Behavior:
//   - The codec is chosen from contentType (msgpack when empty).
//   - A known `action` selects the schema directly.
//   - Otherwise schemas are tried in order interaction, file operation,
//     registration, field update, refill; the first structurally valid one wins.
//   - Anything else is an errors.ErrDecode error.
func Decode(contentType string, body []byte) (Envelope, error) {
	codec, err := CodecFor(contentType)
	if err != nil {
		return Envelope{}, apperrors.Decode(err)
	}

	var raw map[string]any
	if err := codec.Unmarshal(body, &raw); err != nil {
		return Envelope{}, apperrors.Decode(fmt.Errorf("unmarshal %s body: %w", codec.ContentType(), err))
	}
	if raw == nil {
		return Envelope{}, apperrors.Decode(fmt.Errorf("body is not an object"))
	}
	return DecodeMap(raw)
}

// DecodeMap runs schema selection on an already unmarshalled body.
func DecodeMap(raw map[string]any) (Envelope, error) {
	if action, ok := raw["action"].(string); ok {
		if s, known := byAction[action]; known {
			payload, err := s.decode(raw)
			if err != nil {
				return Envelope{}, apperrors.Decode(fmt.Errorf("action %q: %w", action, err))
			}
			return Envelope{Kind: s.kind, Payload: payload}, nil
		}
	}

	for i := range schemas {
		if payload, err := schemas[i].decode(raw); err == nil {
			return Envelope{Kind: schemas[i].kind, Payload: payload}, nil
		}
	}
	return Envelope{}, apperrors.Decode(fmt.Errorf("no schema matches message with keys %v", keys(raw)))
}

func (s *schema) decode(raw map[string]any) (any, error) {
	if err := requireKeys(raw, s.required); err != nil {
		return nil, err
	}

	action, present := raw["action"]
	switch {
	case !present || action == nil:
		if !s.actionOptional {
			return nil, fmt.Errorf("missing action")
		}
	default:
		a, ok := action.(string)
		if !ok || !slices.Contains(s.actions, a) {
			return nil, fmt.Errorf("action %v not valid for %s", action, s.kind)
		}
	}

	for key, fields := range s.nested {
		sub, ok := raw[key].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", key)
		}
		if err := requireKeys(sub, fields); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}

	payload := s.newPayload()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     payload,
		TagName:    "json",
		DecodeHook: strictInt,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}

	if r, ok := payload.(*Registration); ok && r.Action == "" {
		r.Action = ActionRegistration
	}
	return payload, nil
}

// strictInt routes every value bound for an integer field through Int, so a
// fractional or out-of-range id fails the schema instead of being truncated.
// Pointer fields reach here with their element type.
func strictInt(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}
	if data == nil {
		return data, nil
	}
	n, err := Int(data)
	if err != nil {
		return nil, err
	}
	if reflect.New(to).Elem().OverflowInt(n) {
		return nil, fmt.Errorf("value %d overflows %s", n, to)
	}
	return n, nil
}

func requireKeys(m map[string]any, required []string) error {
	for _, k := range required {
		if v, ok := m[k]; !ok || v == nil {
			return fmt.Errorf("missing %s", k)
		}
	}
	return nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

package property

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

type wireProperty struct {
	Type     string `mapstructure:"type"`
	Key      string `mapstructure:"key"`
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

type wireGroup struct {
	Type   string `mapstructure:"type"`
	Values []any  `mapstructure:"values"`
}

type wireStep struct {
	Event        string  `mapstructure:"event"`
	Selector     string  `mapstructure:"selector"`
	TagName      *string `mapstructure:"tag_name"`
	Href         *string `mapstructure:"href"`
	HrefMatching string  `mapstructure:"href_matching"`
	Text         *string `mapstructure:"text"`
	TextMatching string  `mapstructure:"text_matching"`
	URL          string  `mapstructure:"url"`
	URLMatching  string  `mapstructure:"url_matching"`
	Properties   any     `mapstructure:"properties"`
}

type wireAction struct {
	Name  string     `mapstructure:"name"`
	Steps []wireStep `mapstructure:"steps"`
}

// ParseSpec decodes the JSON wire form of a filter spec.
func ParseSpec(data []byte) (Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrUnsupportedSpec, err)
	}

	return DecodeSpec(v)
}

// DecodeSpec builds a Spec from decoded JSON or YAML data:
// arrays become a List, objects with steps an Action, objects with values
// a Group and any other object a Property.
func DecodeSpec(v any) (Spec, error) {
	switch t := normalize(v).(type) {
	case Spec:
		return t, nil

	case []any:
		list := make(List, 0, len(t))
		for i, item := range t {
			s, err := DecodeSpec(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			list = append(list, s)
		}
		return list, nil

	case map[string]any:
		if _, ok := t["steps"]; ok {
			return decodeAction(t)
		}
		if _, ok := t["values"]; ok {
			return decodeGroup(t)
		}
		return decodeProperty(t)
	}

	return nil, fmt.Errorf("%w: cannot decode %T", ErrUnsupportedSpec, v)
}

func decodeInto(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedSpec, err)
	}
	return nil
}

func decodeProperty(m map[string]any) (Spec, error) {
	var w wireProperty
	if err := decodeInto(m, &w); err != nil {
		return nil, err
	}

	domain := Domain(w.Type)
	switch domain {
	case "":
		domain = DomainEvent
	case "hogql":
		domain = DomainRaw
	}

	return &Property{
		Type:     domain,
		Key:      w.Key,
		Operator: Operator(w.Operator),
		Value:    w.Value,
	}, nil
}

func decodeGroup(m map[string]any) (Spec, error) {
	var w wireGroup
	if err := decodeInto(m, &w); err != nil {
		return nil, err
	}

	combinator := Combinator(w.Type)
	if combinator == "" {
		combinator = CombinatorAnd
	}

	values := make([]Spec, 0, len(w.Values))
	for i, item := range w.Values {
		s, err := DecodeSpec(item)
		if err != nil {
			return nil, fmt.Errorf("group value %d: %w", i, err)
		}
		values = append(values, s)
	}

	return &Group{Type: combinator, Values: values}, nil
}

func decodeAction(m map[string]any) (Spec, error) {
	var w wireAction
	if err := decodeInto(m, &w); err != nil {
		return nil, err
	}

	action := &Action{
		Name:  w.Name,
		Steps: make([]ActionStep, 0, len(w.Steps)),
	}

	for i, ws := range w.Steps {
		step := ActionStep{
			Event:        ws.Event,
			Selector:     ws.Selector,
			TagName:      ws.TagName,
			Href:         ws.Href,
			HrefMatching: Matching(strings.ToLower(ws.HrefMatching)),
			Text:         ws.Text,
			TextMatching: Matching(strings.ToLower(ws.TextMatching)),
			URL:          ws.URL,
			URLMatching:  Matching(strings.ToLower(ws.URLMatching)),
		}

		if ws.Properties != nil {
			props, err := DecodeSpec(ws.Properties)
			if err != nil {
				return nil, fmt.Errorf("step %d properties: %w", i, err)
			}
			step.Properties = props
		}

		action.Steps = append(action.Steps, step)
	}

	return action, nil
}

// normalize converts json.Number values into int64 or float64 and
// map[any]any into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()

	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out

	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out

	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	}

	return v
}

package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// node is the tagged wire form of an Expr.
type node struct {
	Kind string `json:"kind"`

	// constant
	Value    any  `json:"value,omitempty"`
	DateTime bool `json:"datetime,omitempty"`

	// field
	Chain []string `json:"chain,omitempty"`

	// compare
	Op    string          `json:"op,omitempty"`
	Left  json.RawMessage `json:"left,omitempty"`
	Right json.RawMessage `json:"right,omitempty"`

	// and, or, call
	Name  string            `json:"name,omitempty"`
	Exprs []json.RawMessage `json:"exprs,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`

	// placeholder
	Field string `json:"field,omitempty"`

	// alias
	Alias string          `json:"alias,omitempty"`
	Expr  json.RawMessage `json:"expr,omitempty"`

	// select
	Columns []json.RawMessage `json:"columns,omitempty"`
	From    json.RawMessage   `json:"from,omitempty"`
	Where   json.RawMessage   `json:"where,omitempty"`
	GroupBy []json.RawMessage `json:"group_by,omitempty"`
	Having  json.RawMessage   `json:"having,omitempty"`
	Limit   json.RawMessage   `json:"limit,omitempty"`
}

// Marshal encodes an expression tree as tagged JSON.
func Marshal(e Expr) ([]byte, error) {
	v, err := encode(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// MarshalIndent is like Marshal but indents the output.
func MarshalIndent(e Expr) ([]byte, error) {
	v, err := encode(e)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func encode(e Expr) (map[string]any, error) {
	switch n := e.(type) {
	case *Constant:
		if t, ok := n.Value.(time.Time); ok {
			return map[string]any{"kind": "constant", "value": t.Format(time.RFC3339Nano), "datetime": true}, nil
		}
		return map[string]any{"kind": "constant", "value": n.Value}, nil
	case *Field:
		return map[string]any{"kind": "field", "chain": n.Chain}, nil
	case *Compare:
		left, err := encode(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := encode(n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "compare", "op": n.Op.String(), "left": left, "right": right}, nil
	case *And:
		exprs, err := encodeList(n.Exprs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "and", "exprs": exprs}, nil
	case *Or:
		exprs, err := encodeList(n.Exprs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "or", "exprs": exprs}, nil
	case *Call:
		args, err := encodeList(n.Args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "call", "name": n.Name, "args": args}, nil
	case *Placeholder:
		return map[string]any{"kind": "placeholder", "field": n.Field}, nil
	case *Alias:
		inner, err := encode(n.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"kind": "alias", "alias": n.Alias, "expr": inner}, nil
	case *Select:
		out := map[string]any{"kind": "select"}
		var err error
		if out["columns"], err = encodeList(n.Columns); err != nil {
			return nil, err
		}
		if out["group_by"], err = encodeList(n.GroupBy); err != nil {
			return nil, err
		}
		for key, child := range map[string]Expr{"from": n.From, "where": n.Where, "having": n.Having, "limit": n.Limit} {
			if child == nil {
				continue
			}
			if out[key], err = encode(child); err != nil {
				return nil, err
			}
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("encode: nil expression")
	default:
		return nil, fmt.Errorf("encode: unknown expression type %T", e)
	}
}

func encodeList(exprs []Expr) ([]any, error) {
	out := make([]any, 0, len(exprs))
	for _, e := range exprs {
		v, err := encode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Unmarshal decodes the tagged JSON produced by Marshal.
func Unmarshal(data []byte) (Expr, error) {
	var n node
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}

	switch n.Kind {
	case "constant":
		return decodeConstant(n)
	case "field":
		return &Field{Chain: n.Chain}, nil
	case "compare":
		op, ok := ParseCompareOp(n.Op)
		if !ok {
			return nil, fmt.Errorf("decode compare: unknown operator %q", n.Op)
		}
		left, err := Unmarshal(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := Unmarshal(n.Right)
		if err != nil {
			return nil, err
		}
		return &Compare{Op: op, Left: left, Right: right}, nil
	case "and":
		exprs, err := decodeList(n.Exprs)
		if err != nil {
			return nil, err
		}
		return &And{Exprs: exprs}, nil
	case "or":
		exprs, err := decodeList(n.Exprs)
		if err != nil {
			return nil, err
		}
		return &Or{Exprs: exprs}, nil
	case "call":
		args, err := decodeList(n.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Name: n.Name, Args: args}, nil
	case "placeholder":
		return &Placeholder{Field: n.Field}, nil
	case "alias":
		inner, err := Unmarshal(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Alias{Alias: n.Alias, Expr: inner}, nil
	case "select":
		return decodeSelect(n)
	default:
		return nil, fmt.Errorf("decode: unknown expression kind %q", n.Kind)
	}
}

func decodeConstant(n node) (Expr, error) {
	if n.DateTime {
		s, ok := n.Value.(string)
		if !ok {
			return nil, fmt.Errorf("decode constant: datetime value must be a string")
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("decode constant: %w", err)
		}
		return &Constant{Value: t}, nil
	}

	switch v := n.Value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return &Constant{Value: i}, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("decode constant: %w", err)
		}
		return &Constant{Value: f}, nil
	case nil, bool, string:
		return &Constant{Value: v}, nil
	default:
		return nil, fmt.Errorf("decode constant: unsupported value %T", v)
	}
}

func decodeList(raw []json.RawMessage) ([]Expr, error) {
	out := make([]Expr, 0, len(raw))
	for _, r := range raw {
		e, err := Unmarshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeOptional(raw json.RawMessage) (Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return Unmarshal(raw)
}

func decodeSelect(n node) (Expr, error) {
	sel := &Select{}
	var err error

	if sel.Columns, err = decodeList(n.Columns); err != nil {
		return nil, err
	}
	if sel.GroupBy, err = decodeList(n.GroupBy); err != nil {
		return nil, err
	}
	if sel.From, err = decodeOptional(n.From); err != nil {
		return nil, err
	}
	if sel.Where, err = decodeOptional(n.Where); err != nil {
		return nil, err
	}
	if sel.Having, err = decodeOptional(n.Having); err != nil {
		return nil, err
	}
	if sel.Limit, err = decodeOptional(n.Limit); err != nil {
		return nil, err
	}
	return sel, nil
}

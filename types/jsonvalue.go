package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// JSONKind identifies which variant a JSONValue holds
type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONInt
	JSONDouble
	JSONString
	JSONArray
	JSONObject
)

// String returns the string representation of the JSONKind
func (k JSONKind) String() string {
	switch k {
	case JSONNull:
		return "null"
	case JSONBool:
		return "bool"
	case JSONInt:
		return "int"
	case JSONDouble:
		return "double"
	case JSONString:
		return "string"
	case JSONArray:
		return "array"
	case JSONObject:
		return "object"
	default:
		return "unknown"
	}
}

// JSONValue is a closed JSON variant used for tool-call arguments.
// The zero value is null.
type JSONValue struct {
	kind JSONKind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []JSONValue
	obj  map[string]JSONValue
}

func Null() JSONValue { return JSONValue{kind: JSONNull} }
func Bool(b bool) JSONValue { return JSONValue{kind: JSONBool, b: b} }
func Int(i int64) JSONValue { return JSONValue{kind: JSONInt, i: i} }
func Double(f float64) JSONValue { return JSONValue{kind: JSONDouble, f: f} }
func String(s string) JSONValue { return JSONValue{kind: JSONString, s: s} }
func Array(vs ...JSONValue) JSONValue { return JSONValue{kind: JSONArray, arr: append([]JSONValue{}, vs...)} }

// Object builds an object value. The map is copied.
func Object(m map[string]JSONValue) JSONValue {
	obj := make(map[string]JSONValue, len(m))
	for k, v := range m {
		obj[k] = v
	}
	return JSONValue{kind: JSONObject, obj: obj}
}

// Kind returns the variant held by v
func (v JSONValue) Kind() JSONKind { return v.kind }

// IsNull reports whether v is null
func (v JSONValue) IsNull() bool { return v.kind == JSONNull }

func (v JSONValue) AsBool() (bool, bool) { return v.b, v.kind == JSONBool }
func (v JSONValue) AsInt() (int64, bool) { return v.i, v.kind == JSONInt }
func (v JSONValue) AsString() (string, bool) { return v.s, v.kind == JSONString }

// AsDouble returns the numeric value of v. Integers are widened.
func (v JSONValue) AsDouble() (float64, bool) {
	switch v.kind {
	case JSONDouble:
		return v.f, true
	case JSONInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsArray returns a copy of the array elements
func (v JSONValue) AsArray() ([]JSONValue, bool) {
	if v.kind != JSONArray {
		return nil, false
	}
	return append([]JSONValue(nil), v.arr...), true
}

// AsObject returns a copy of the object members
func (v JSONValue) AsObject() (map[string]JSONValue, bool) {
	if v.kind != JSONObject {
		return nil, false
	}
	out := make(map[string]JSONValue, len(v.obj))
	for k, m := range v.obj {
		out[k] = m
	}
	return out, true
}

// Equal reports deep equality. An int and a double are never equal.
func (v JSONValue) Equal(o JSONValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case JSONNull:
		return true
	case JSONBool:
		return v.b == o.b
	case JSONInt:
		return v.i == o.i
	case JSONDouble:
		return v.f == o.f
	case JSONString:
		return v.s == o.s
	case JSONArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case JSONObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, m := range v.obj {
			om, ok := o.obj[k]
			if !ok || !m.Equal(om) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes v. Object keys are written in sorted order.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v JSONValue) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case JSONNull:
		buf.WriteString("null")
	case JSONBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case JSONInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case JSONDouble:
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case JSONString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case JSONArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case JSONObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.obj[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("invalid json value kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON decodes any JSON document into v. Numbers without a
// fraction or exponent that fit in int64 become JSONInt.
func (v *JSONValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	out, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after json value")
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder) (JSONValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return JSONValue{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return JSONValue{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Double(f), nil
	case json.Delim:
		switch t {
		case '[':
			arr := []JSONValue{}
			for dec.More() {
				e, err := decodeValue(dec)
				if err != nil {
					return JSONValue{}, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil {
				return JSONValue{}, err
			}
			return JSONValue{kind: JSONArray, arr: arr}, nil
		case '{':
			obj := map[string]JSONValue{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return JSONValue{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return JSONValue{}, fmt.Errorf("invalid object key %v", kt)
				}
				e, err := decodeValue(dec)
				if err != nil {
					return JSONValue{}, err
				}
				obj[key] = e
			}
			if _, err := dec.Token(); err != nil {
				return JSONValue{}, err
			}
			return JSONValue{kind: JSONObject, obj: obj}, nil
		}
	}
	return JSONValue{}, fmt.Errorf("unexpected json token %v", tok)
}

// ParseJSONObject decodes s as a JSON object into an argument map
func ParseJSONObject(s string) (map[string]JSONValue, error) {
	var v JSONValue
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("failed to parse json object: %w", err)
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("expected json object, got %s", v.Kind())
	}
	return obj, nil
}

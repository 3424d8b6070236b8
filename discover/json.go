package discover

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Object is a decoded JSON object that remembers its key order.
type Object struct {
	Keys   []string
	Values map[string]any
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// ReadJSONLines decodes a stream of JSON values separated by whitespace.
// Numbers decode as json.Number, objects as *Object and arrays as []any.
func ReadJSONLines(r io.Reader) ([]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var out []any
	for {
		v, err := decodeValue(dec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("discover: value %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '[':
		items := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, unexpected(err)
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, unexpected(err)
		}
		return items, nil
	case '{':
		obj := &Object{Values: make(map[string]any)}
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, unexpected(err)
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, unexpected(err)
			}
			if _, dup := obj.Values[key]; !dup {
				obj.Keys = append(obj.Keys, key)
			}
			obj.Values[key] = v
		}
		if _, err := dec.Token(); err != nil {
			return nil, unexpected(err)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unexpected %v", d)
}

// unexpected turns an end of input inside a value into an error.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

package wdltest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"
)

// Value is a single WDL value as decoded from an engine's output payload
// or from a fixture sidecar.
type Value interface{}

// Values represents output bindings of a WDL run, keyed by output name.
type Values map[string]Value

// NewValues ...
func NewValues() *Values {
	return &Values{}
}

// Decode ...
func (p *Values) Decode(f *os.File) error {
	switch filepath.Ext(f.Name()) {
	case ".json":
		return json.NewDecoder(f).Decode(p)
	default:
		b, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(b, p)
	}
}

func (recv *Values) UnmarshalJSON(b []byte) error {
	var any interface{}
	if err := json.Unmarshal(b, &any); err != nil {
		return err
	}
	params, ok := any.(map[string]interface{})
	if !ok {
		return fmt.Errorf("not a key-value type")
	}
	if *recv == nil {
		*recv = Values{}
	}
	for key, value := range params {
		(*recv)[key] = ConvertToValue(value)
	}
	return nil
}

// ConvertToValue normalizes a decoded JSON or YAML tree into the shape
// the comparator works on: arrays become []Value, objects become Values.
// WDL compound values keep their JSON serialization: a Pair is an object
// with "left"/"right" members, a struct is a plain object, a File is its
// path string.
func ConvertToValue(bean interface{}) Value {
	switch t := bean.(type) {
	case []interface{}:
		arr := make([]Value, len(t))
		for i, item := range t {
			arr[i] = ConvertToValue(item)
		}
		return arr
	case []Value:
		arr := make([]Value, len(t))
		for i, item := range t {
			arr[i] = ConvertToValue(item)
		}
		return arr
	case map[string]interface{}:
		obj := Values{}
		for k, v := range t {
			obj[k] = ConvertToValue(v)
		}
		return obj
	case map[interface{}]interface{}:
		// yaml.v2 decodes mappings with interface keys
		obj := Values{}
		for k, v := range t {
			obj[fmt.Sprint(k)] = ConvertToValue(v)
		}
		return obj
	case Values:
		obj := Values{}
		for k, v := range t {
			obj[k] = ConvertToValue(v)
		}
		return obj
	default:
		return bean
	}
}

// ParseOutputs decodes an engine's stdout payload into output bindings.
// Engines following the miniwdl convention wrap the bindings in an
// "outputs" member next to run metadata; a bare object is taken as the
// bindings themselves.
func ParseOutputs(raw []byte) (Values, error) {
	var any interface{}
	if err := json.Unmarshal(raw, &any); err != nil {
		return nil, err
	}
	obj, ok := any.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("engine output is not a JSON object")
	}
	if inner, got := obj["outputs"]; got {
		if innerObj, ok := inner.(map[string]interface{}); ok {
			obj = innerObj
		}
	}
	outputs := Values{}
	for k, v := range obj {
		outputs[k] = ConvertToValue(v)
	}
	return outputs, nil
}

package wdltest

import (
	"encoding/json"
	"io"

	yaml "gopkg.in/yaml.v2"
)

// Y2J converts yaml to json.
func Y2J(in []byte) ([]byte, error) {
	result := []byte{}
	var root interface{}
	if err := yaml.Unmarshal(in, &root); err != nil {
		return result, err
	}
	return json.Marshal(convert(root))
}

// J2Y converts json to yaml.
func J2Y(r io.Reader) ([]byte, error) {
	result := []byte{}
	b, err := io.ReadAll(r)
	if err != nil {
		return result, err
	}
	var root interface{}
	if err := json.Unmarshal(b, &root); err != nil {
		return result, err
	}
	return yaml.Marshal(convert(root))
}

// convert rewrites yaml.v2 interface-keyed maps to string-keyed maps so
// the tree is JSON-encodable.
func convert(parent interface{}) interface{} {
	switch entity := parent.(type) {
	case map[interface{}]interface{}:
		node := map[string]interface{}{}
		for key, val := range entity {
			node[key.(string)] = convert(val)
		}
		return node
	case []interface{}:
		for idx, val := range entity {
			entity[idx] = convert(val)
		}
		return entity
	}
	return parent
}

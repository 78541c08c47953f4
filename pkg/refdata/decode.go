package refdata

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/f1-race-predictor/pkg/model"
)

// DecodeYAML parses and validates a YAML catalog.
func DecodeYAML(data []byte) (*model.Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", model.ErrDataUnavailable, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	ret := &model.Catalog{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", model.ErrDataUnavailable, err)
	}
	if err := Check(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// DecodeJSON parses a JSON document and validates the catalog found at
// selector. An empty selector or "$" uses the whole document.
// If the selector matches more than one node the first match is used.
func DecodeJSON(data []byte, selector string) (*model.Catalog, error) {
	obj, err := oj.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse json: %w", model.ErrDataUnavailable, err)
	}
	if selector != "" && selector != "$" {
		path, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("%w: selector %q: %w",
				model.ErrDataUnavailable, selector, err)
		}
		res := path.Get(obj)
		if len(res) == 0 {
			return nil, fmt.Errorf("%w: selector %q matches nothing",
				model.ErrDataUnavailable, selector)
		}
		obj = res[0]
	}
	if err := ValidateDocument(obj); err != nil {
		return nil, err
	}
	ret := &model.Catalog{}
	// the selected node is re-encoded, field mapping follows the json tags
	if err := json.Unmarshal([]byte(oj.JSON(obj)), ret); err != nil {
		return nil, fmt.Errorf("%w: decode json: %w", model.ErrDataUnavailable, err)
	}
	if err := Check(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

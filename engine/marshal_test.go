package engine_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/warp/procedure-gateway/engine"
)

// =============================================================================
// MARSHALING TESTS
// =============================================================================

func TestMarshal_LengthMatchesOrder(t *testing.T) {
	// GIVEN: Arbitrary form data and parameter orders of varying length
	// THEN: The marshaled list is always aligned 1:1 with the order

	data := engine.FormData{"a": 1, "b": "two"}

	cases := [][]string{
		nil,
		{"a"},
		{"a", "b"},
		{"a", "b", "missing", "a"},
	}
	for _, order := range cases {
		params := engine.Marshal(data, order)
		if len(params) != len(order) {
			t.Errorf("order %v: expected %d params, got %d", order, len(order), len(params))
		}
	}
}

func TestMarshal_AbsentFieldsBecomeNil(t *testing.T) {
	// GIVEN: Fields absent from the data, or present with explicit nil
	// THEN: The corresponding marshaled value is exactly nil

	data := engine.FormData{"present": "x", "explicit": nil}
	params := engine.Marshal(data, []string{"present", "explicit", "absent"})

	if params[0] != "x" {
		t.Errorf("expected pass-through for present field, got %v", params[0])
	}
	if params[1] != nil {
		t.Errorf("expected nil for explicit nil field, got %v", params[1])
	}
	if params[2] != nil {
		t.Errorf("expected nil for absent field, got %v", params[2])
	}
}

func TestMarshal_StructuredValuesRoundTrip(t *testing.T) {
	// GIVEN: A nested structure in the form data
	// WHEN: Marshaled
	// THEN: The value is its JSON string, and re-parsing yields a value
	//       deep-equal to the original

	original := map[string]any{"c": "blue", "sizes": []any{"s", "m"}}
	data := engine.FormData{"prefs": original}

	params := engine.Marshal(data, []string{"prefs"})

	text, ok := params[0].(string)
	if !ok {
		t.Fatalf("expected JSON string, got %T", params[0])
	}

	var reparsed map[string]any
	if err := json.Unmarshal([]byte(text), &reparsed); err != nil {
		t.Fatalf("marshaled value is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(reparsed, original) {
		t.Errorf("round trip mismatch: got %v, want %v", reparsed, original)
	}
}

func TestMarshal_SpecScenario(t *testing.T) {
	// GIVEN: {name:"John", age:30, address:nil, prefs:{c:"blue"}}
	// WHEN:  Marshaled with order [name, age, address, prefs]
	// THEN:  ["John", 30, nil, `{"c":"blue"}`]

	data := engine.FormData{
		"name":    "John",
		"age":     30,
		"address": nil,
		"prefs":   map[string]any{"c": "blue"},
	}

	params := engine.Marshal(data, []string{"name", "age", "address", "prefs"})

	want := []any{"John", 30, nil, `{"c":"blue"}`}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("got %v, want %v", params, want)
	}
}

func TestMarshal_ScalarsPassThroughUnchanged(t *testing.T) {
	data := engine.FormData{
		"s":     "text",
		"i":     42,
		"f":     3.5,
		"b":     true,
		"bytes": []byte{0x01},
	}
	order := []string{"s", "i", "f", "b", "bytes"}

	params := engine.Marshal(data, order)

	for i, name := range order {
		if !reflect.DeepEqual(params[i], data[name]) {
			t.Errorf("%s: got %v (%T), want %v", name, params[i], params[i], data[name])
		}
	}
}

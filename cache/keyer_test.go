package cache

import (
	"strings"
	"testing"
)

func TestKeyer_DeterministicForMaps(t *testing.T) {
	keyer := NewDefaultKeyer()

	// Same content, different insertion order
	map1 := map[string]any{"b": 2, "a": 1, "c": 3}
	map2 := map[string]any{"a": 1, "c": 3, "b": 2}
	map3 := map[string]any{"c": 3, "b": 2, "a": 1}

	keys := make([]string, 0, 3)
	for _, m := range []map[string]any{map1, map2, map3} {
		key, err := keyer.Key("generate_site", m)
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		keys = append(keys, key)
	}

	if keys[0] != keys[1] || keys[1] != keys[2] {
		t.Errorf("Keys should be equal for same content: %v", keys)
	}
}

func TestKeyer_StructAndMapAgree(t *testing.T) {
	keyer := NewDefaultKeyer()

	type postParams struct {
		Title string   `json:"title"`
		Tags  []string `json:"tags"`
	}

	fromStruct, err := keyer.Key("generate_post", postParams{Title: "Hello", Tags: []string{"go"}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	fromMap, err := keyer.Key("generate_post", map[string]any{"tags": []any{"go"}, "title": "Hello"})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if fromStruct != fromMap {
		t.Errorf("struct and equivalent map should share a key:\n  struct=%s\n  map=%s", fromStruct, fromMap)
	}
}

func TestKeyer_ArrayOrderPreserved(t *testing.T) {
	keyer := NewDefaultKeyer()

	key1, err := keyer.Key("generate_post", map[string]any{"tags": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key("generate_post", map[string]any{"tags": []any{"b", "a"}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if key1 == key2 {
		t.Error("Keys should differ for different array order")
	}
}

func TestKeyer_DifferentOperationsDifferentKeys(t *testing.T) {
	keyer := NewDefaultKeyer()
	params := map[string]any{"prompt": "blog"}

	key1, _ := keyer.Key("generate_site", params)
	key2, _ := keyer.Key("generate_post", params)
	if key1 == key2 {
		t.Error("different operations must not share a key")
	}
}

func TestKeyer_SeparatorPreventsCollisions(t *testing.T) {
	keyer := NewDefaultKeyer()

	// "ab" + "c" and "a" + "bc" must differ.
	key1, _ := keyer.Key("ab", "c")
	key2, _ := keyer.Key("a", "bc")
	if key1 == key2 {
		t.Error("operation/params boundary must be unambiguous")
	}
}

func TestKeyer_KeyFormat(t *testing.T) {
	keyer := NewDefaultKeyer()

	key, err := keyer.Key("generate_site", map[string]any{"prompt": "portfolio"})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if len(key) != KeyLength {
		t.Errorf("len(key) = %d, want %d", len(key), KeyLength)
	}
	if err := ValidateKey(key); err != nil {
		t.Errorf("generated key %q does not validate: %v", key, err)
	}
	if strings.ToLower(key) != key {
		t.Errorf("key should be lower-case hex, got %q", key)
	}
}

func TestKeyer_NestedMaps(t *testing.T) {
	keyer := NewDefaultKeyer()

	nested1 := map[string]any{
		"options": map[string]any{"theme": "minima", "layout": "blog"},
		"prompt":  "travel",
	}
	nested2 := map[string]any{
		"prompt":  "travel",
		"options": map[string]any{"layout": "blog", "theme": "minima"},
	}

	key1, _ := keyer.Key("generate_site", nested1)
	key2, _ := keyer.Key("generate_site", nested2)
	if key1 != key2 {
		t.Errorf("nested maps with same content should share a key")
	}
}

func TestKeyer_NilAndEmpty(t *testing.T) {
	keyer := NewDefaultKeyer()

	keyNil1, err := keyer.Key("health", nil)
	if err != nil {
		t.Fatalf("Key() for nil error = %v", err)
	}
	keyNil2, _ := keyer.Key("health", nil)
	keyEmpty, _ := keyer.Key("health", map[string]any{})

	if keyNil1 != keyNil2 {
		t.Error("nil params should give a stable key")
	}
	if keyNil1 == keyEmpty {
		t.Error("nil and empty map params should not share a key")
	}
}

func TestKeyer_UnsupportedParams(t *testing.T) {
	keyer := NewDefaultKeyer()

	if _, err := keyer.Key("generate_site", map[string]any{"fn": func() {}}); err == nil {
		t.Error("expected error for unencodable params")
	}
}

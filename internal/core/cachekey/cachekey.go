// Package cachekey derives stable, collision-resistant cache keys from a
// function identity, its arguments, a version string and an optional tag.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"
	"sort"
)

// KeyFunc is a full replacement key function supplied by a caller that needs
// custom key semantics. The implementation is responsible for folding in any
// version or tag it cares about.
type KeyFunc func(funcName string, args []any, kwargs map[string]any) string

// payload is the canonical structure hashed by Derive. Field order is fixed
// and map keys are sorted by encoding/json, so serialization is
// deterministic.
type payload struct {
	V      string         `json:"v"`
	Func   string         `json:"func"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
	Tag    string         `json:"tag"`
}

// Derive hashes the canonical {version, function, args, kwargs, tag}
// structure with SHA-256. Arguments that cannot be serialized canonically are
// replaced by their Go-syntax representations before hashing, so every input
// yields a key.
func Derive(funcName string, args []any, kwargs map[string]any, version, tag string) string {
	text, err := json.Marshal(payload{
		V:      version,
		Func:   funcName,
		Args:   args,
		Kwargs: kwargs,
		Tag:    tag,
	})
	if err != nil {
		text = reprPayload(funcName, args, kwargs, version, tag)
	}

	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])
}

// reprPayload serializes each argument's debug representation instead of the
// value itself. Representations are plain strings, so this marshal cannot
// fail.
func reprPayload(funcName string, args []any, kwargs map[string]any, version, tag string) []byte {
	reprArgs := make([]any, len(args))
	for i, a := range args {
		reprArgs[i] = fmt.Sprintf("%#v", a)
	}

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	reprKW := make(map[string]any, len(kwargs))
	for _, k := range keys {
		reprKW[k] = fmt.Sprintf("%#v", kwargs[k])
	}

	text, _ := json.Marshal(payload{
		V:      version,
		Func:   funcName,
		Args:   reprArgs,
		Kwargs: reprKW,
		Tag:    tag,
	})
	return text
}

// FuncName returns the qualified name of a function value, falling back to
// its type when the runtime cannot resolve it.
func FuncName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Sprintf("%T", fn)
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("%T", fn)
}

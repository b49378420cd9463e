package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/rhuss/agentserver/pkg/api"
)

// UnsupportedResultError reports a handler result that cannot be converted
// to a mapping.
type UnsupportedResultError struct {
	TypeName string
}

func (e *UnsupportedResultError) Error() string {
	return fmt.Sprintf("unsupported result type: %s", e.TypeName)
}

// Normalize converts a handler result or stream chunk to a plain mapping.
//
// Typed models (api.Model) are serialized, so unset omitempty fields are
// dropped. Structs and pointers to structs are converted one level deep: each
// exported field becomes a key named by its json tag and keeps its value
// as is. A map[string]any is returned unchanged. Any other value yields an
// *UnsupportedResultError.
func Normalize(v any) (map[string]any, error) {
	if v == nil {
		return nil, &UnsupportedResultError{TypeName: "nil"}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, &UnsupportedResultError{TypeName: fmt.Sprintf("%T (nil)", v)}
	}

	switch r := v.(type) {
	case map[string]any:
		if r == nil {
			return map[string]any{}, nil
		}
		return r, nil
	case api.Model:
		return normalizeModel(r)
	}

	if reflect.Indirect(rv).Kind() == reflect.Struct {
		return normalizeRecord(reflect.Indirect(rv)), nil
	}
	return nil, &UnsupportedResultError{TypeName: fmt.Sprintf("%T", v)}
}

func normalizeModel(m api.Model) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("serializing %T: %w", m, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("serializing %T: %w", m, err)
	}
	return out, nil
}

func normalizeRecord(rv reflect.Value) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		fv := rv.Field(i)
		if (hasOption(opts, "omitempty") && isEmptyValue(fv)) || (hasOption(opts, "omitzero") && fv.IsZero()) {
			continue
		}
		out[name] = fv.Interface()
	}
	return out
}

func hasOption(opts, name string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == name {
			return true
		}
	}
	return false
}

// isEmptyValue follows the omitempty rule of encoding/json.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return v.IsZero()
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

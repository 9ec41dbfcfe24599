package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Stringify converts a function result into a condition outcome or action
// output. Strings pass through, nil becomes "", scalars and fmt.Stringers
// use their fmt form and composite values are JSON encoded.
func Stringify(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case error:
		return x.Error(), nil
	}

	switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("stringify %T: %w", v, err)
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

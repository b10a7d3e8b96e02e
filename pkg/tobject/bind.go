package tobject

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// SetVarArray binds a nested data set in one call. The shape of each value
// decides what happens to its key:
//
//	scalar                  SetVariable(key, value)
//	map                     one instance of block key, bound recursively
//	slice of maps           one instance of block key per element
//	nil                     one instance of block key with nothing bound
//
// Maps with non-string keys, as produced by YAML decoders, are accepted.
// Keys are processed in sorted order. Every failure is reported and
// returned joined; binding continues past failures.
func (t *Template) SetVarArray(data map[string]any) error {
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(data)) {
		if err := t.bind(key, data[key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Template) bind(key string, value any) error {
	switch v := value.(type) {
	case nil:
		_, err := t.SetBlock(key)
		return err
	case map[string]any:
		return t.bindBlock(key, v)
	case map[any]any:
		return t.bindBlock(key, stringKeys(v))
	case []map[string]any:
		var errs []error
		for _, row := range v {
			if err := t.bindBlock(key, row); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case []any:
		var errs []error
		for i, row := range v {
			var err error
			switch r := row.(type) {
			case nil:
				_, err = t.SetBlock(key)
			case map[string]any:
				err = t.bindBlock(key, r)
			case map[any]any:
				err = t.bindBlock(key, stringKeys(r))
			default:
				t.notice("Unsupported value in block list", "block", key, "index", i)
				err = fmt.Errorf("%w: %s[%d] is %T", ErrUnsupportedValue, key, i, row)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	s, ok := scalarString(value)
	if !ok {
		t.notice("Unsupported value", "variable", key)
		return fmt.Errorf("%w: %s is %T", ErrUnsupportedValue, key, value)
	}
	return t.SetVariable(key, s)
}

func (t *Template) bindBlock(key string, data map[string]any) error {
	child, err := t.SetBlock(key)
	if err != nil {
		return err
	}
	if err = child.SetVarArray(data); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func stringKeys(m map[any]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = v
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case bool:
		return strconv.FormatBool(s), true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(s), true
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}

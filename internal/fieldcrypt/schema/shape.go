package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

var timeType = reflect.TypeOf(time.Time{})

// shapeIndex maps every dotted json path of an entity struct to its Go type.
type shapeIndex map[string]reflect.Type

func indexShape(shape any) (shapeIndex, error) {
	t := reflect.TypeOf(shape)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity shape must be a struct, got %v", domain.ErrShapeMismatch, t)
	}
	idx := shapeIndex{}
	walkShape(t, "", idx)
	return idx, nil
}

func walkShape(t reflect.Type, prefix string, idx shapeIndex) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, skip := jsonName(f)
		if skip {
			continue
		}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		// Untagged embedded structs are flattened by encoding/json.
		if f.Anonymous && f.Tag.Get("json") == "" && ft.Kind() == reflect.Struct {
			walkShape(ft, prefix, idx)
			continue
		}

		path := prefix + name
		idx[path] = ft
		if ft.Kind() == reflect.Struct && ft != timeType {
			walkShape(ft, path+".", idx)
		}
	}
}

func jsonName(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, false
}

// check verifies that path exists and holds a value of the given kind.
func (s shapeIndex) check(path string, kind Kind) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	t, ok := s[path]
	if !ok {
		return fmt.Errorf("%w: %q is not a field of the entity", domain.ErrInvalidFieldPath, path)
	}
	switch kind {
	case KindString:
		if t.Kind() == reflect.String {
			return nil
		}
	case KindStringArray:
		if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() == reflect.String {
			return nil
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %d", domain.ErrShapeMismatch, path, kind)
	}
	return fmt.Errorf("%w: %q is %v, expected %v", domain.ErrShapeMismatch, path, t, kind)
}

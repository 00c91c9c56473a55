package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// lookupFunc resolves a variable name; the bool reports whether it was set.
type lookupFunc func(string) (string, bool)

var durationType = reflect.TypeOf(time.Duration(0))

// loadFromEnv loads configuration values from environment variables
func loadFromEnv(cfg *Config) error {
	return loadFromLookup(cfg, os.LookupEnv)
}

// loadFromLookup walks cfg honoring env tags on every nested struct
func loadFromLookup(v any, lookup lookupFunc) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("expected pointer, got %s", val.Kind())
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected struct, got %s", val.Kind())
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if field.Kind() == reflect.Struct {
			if err := loadFromLookup(field.Addr().Interface(), lookup); err != nil {
				return err
			}
			continue
		}

		envVar := fieldType.Tag.Get("env")
		if envVar == "" {
			continue
		}
		value, ok := lookup(envVar)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, fieldType, value); err != nil {
			return fmt.Errorf("failed to set field %s from env var %s: %w", fieldType.Name, envVar, err)
		}
	}
	return nil
}

// setFieldValue sets a struct field from an environment variable string
func setFieldValue(field reflect.Value, fieldType reflect.StructField, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field %s is not settable", fieldType.Name)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fieldType.Type == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("integer value out of range: %s", value)
		}
		field.SetInt(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if fieldType.Type.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", fieldType.Type.Elem().Kind())
		}
		// comma-separated; blanks are dropped
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		slice := reflect.MakeSlice(fieldType.Type, len(parts), len(parts))
		for i, part := range parts {
			slice.Index(i).SetString(part)
		}
		field.Set(slice)

	case reflect.Map:
		if fieldType.Type.Key().Kind() != reflect.String || fieldType.Type.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported map type: %s -> %s", fieldType.Type.Key().Kind(), fieldType.Type.Elem().Kind())
		}
		// key=value,key2=value2
		m := reflect.MakeMap(fieldType.Type)
		for _, pair := range strings.Split(value, ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
			if len(kv) != 2 || kv[0] == "" {
				return fmt.Errorf("invalid map entry format: %s", pair)
			}
			m.SetMapIndex(reflect.ValueOf(kv[0]), reflect.ValueOf(kv[1]))
		}
		field.Set(m)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

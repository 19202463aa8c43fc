package models

import (
	"errors"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/dtnitsch/llm-archive-reader/pkg/faults"
)

// applyEnvOverrides copies every non-empty variable named by an `env` tag
// into cfg. All malformed values are reported together as a configuration error.
func applyEnvOverrides(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var errs []error
	overrideStruct(v, &errs)
	return errors.Join(errs...)
}

func overrideStruct(v reflect.Value, errs *[]error) {
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			overrideStruct(field, errs)
			continue
		}

		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		val := os.Getenv(name)
		if val == "" {
			continue
		}
		if err := setField(field, val); err != nil {
			*errs = append(*errs, faults.Config("%s: invalid value %q", name, val))
		}
	}
}

func setField(field reflect.Value, val string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Bool:
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Ptr:
		if field.Type().Elem().Kind() != reflect.Bool {
			return nil
		}
		b, err := parseBool(val)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(&b))
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(val, ",")
			for i, p := range parts {
				parts[i] = strings.TrimSpace(p)
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

var errNotBool = errors.New("not a boolean")

// parseBool accepts true/false, 1/0 and yes/no in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, errNotBool
}

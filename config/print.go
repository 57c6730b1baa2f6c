package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Print dumps the effective configuration, masking secrets.
func Print(cfg Config, logger log.Logger) {
	logger.Infof("Configuration:")
	for _, line := range lines(reflect.ValueOf(cfg), "") {
		logger.Printf("- %s", line)
	}
}

func lines(v reflect.Value, prefix string) []string {
	var out []string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if name == "" {
			name = field.Name
		}
		value := v.Field(i)

		if value.Kind() == reflect.Struct {
			out = append(out, lines(value, prefix+name+".")...)
			continue
		}
		out = append(out, fmt.Sprintf("%s%s: %s", prefix, name, format(value)))
	}
	return out
}

func format(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		if str := s.String(); str != "" {
			return str
		}
		return "<unset>"
	}

	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return "<unset>"
		}
	case reflect.Slice:
		if v.Len() == 0 {
			return "<unset>"
		}
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v.Interface())
}

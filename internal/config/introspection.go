package config

import (
	"reflect"
	"sort"
	"strings"
)

// unknownKeys lists dotted keys in settings that do not map onto ConfigSchema
func unknownKeys(settings map[string]interface{}) []string {
	var out []string
	collectUnknown(reflect.TypeOf(ConfigSchema{}), settings, "", &out)
	sort.Strings(out)
	return out
}

func collectUnknown(t reflect.Type, settings map[string]interface{}, prefix string, out *[]string) {
	fields := make(map[string]reflect.StructField)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag := f.Tag.Get("mapstructure"); tag != "" && f.IsExported() {
			fields[strings.ToLower(tag)] = f
		}
	}

	for key, value := range settings {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		f, ok := fields[strings.ToLower(key)]
		if !ok {
			*out = append(*out, path)
			continue
		}

		nested, isMap := value.(map[string]interface{})
		if !isMap {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Struct:
			if f.Type.PkgPath() != "time" {
				collectUnknown(f.Type, nested, path, out)
			}
		case reflect.Map:
			if f.Type.Elem().Kind() != reflect.Struct {
				continue
			}
			for name, entry := range nested {
				if entryMap, ok := entry.(map[string]interface{}); ok {
					collectUnknown(f.Type.Elem(), entryMap, path+"."+name, out)
				}
			}
		}
	}
}

// IsSecretKey reports whether a config key holds a credential
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "key") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "password") ||
		strings.Contains(k, "token") ||
		strings.HasPrefix(k, "keys.")
}

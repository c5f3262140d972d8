package utils

import (
	"reflect"
	"strings"
)

// NormalizeDTO trims string fields on a pointer-to-struct DTO, including strings
// inside nested structs and slices of structs. Fields listed in keep are left as-is.
func NormalizeDTO(dto any, keep ...string) {
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr {
		return
	}
	normalizeValue(v.Elem(), keep)
}

func normalizeValue(s reflect.Value, keep []string) {
	if s.Kind() != reflect.Struct {
		return
	}
	t := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() || contains(keep, t.Field(i).Name) {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Struct:
			normalizeValue(f, keep)
		case reflect.Slice:
			for j := 0; j < f.Len(); j++ {
				el := f.Index(j)
				switch el.Kind() {
				case reflect.String:
					el.SetString(strings.TrimSpace(el.String()))
				case reflect.Struct:
					normalizeValue(el, keep)
				}
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package flagx binds cobra flags to option structs and turns the flags a
// user actually set into config overrides.
//
// Struct tags:
//
//	type ServeOptions struct {
//	    ConfigPath string        `flag:"config,c" usage:"config directory" default:"./configs"`
//	    Addr       string        `flag:"addr" usage:"listen address" config:"http.addr"`
//	    Interval   time.Duration `flag:"cleanup-interval" config:"cleanup.interval"`
//	}
//
// - flag: flag name and optional short name (mandatory)
// - usage / default / required: registration details
// - config: dotted config key; only changed flags become overrides
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

type fieldSpec struct {
	index     int
	name      string
	short     string
	usage     string
	def       string
	required  bool
	configKey string
}

func structFields(target interface{}) (reflect.Value, []fieldSpec, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("target must be a pointer to struct")
	}
	v = v.Elem()
	t := v.Type()

	specs := make([]fieldSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("flag")
		if tag == "" || !v.Field(i).CanSet() {
			continue
		}
		parts := strings.Split(tag, ",")
		s := fieldSpec{
			index:     i,
			name:      parts[0],
			usage:     f.Tag.Get("usage"),
			def:       f.Tag.Get("default"),
			required:  f.Tag.Get("required") == "true",
			configKey: f.Tag.Get("config"),
		}
		if len(parts) > 1 {
			s.short = parts[1]
		}
		specs = append(specs, s)
	}
	return v, specs, nil
}

// BindFlags registers one flag per tagged field
func BindFlags(cmd *cobra.Command, target interface{}) error {
	v, specs, err := structFields(target)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := registerFlag(cmd, v.Field(s.index).Type(), s); err != nil {
			return fmt.Errorf("flag %s: %w", s.name, err)
		}
		if s.required {
			if err := cmd.MarkFlagRequired(s.name); err != nil {
				return err
			}
		}
	}
	return nil
}

func registerFlag(cmd *cobra.Command, typ reflect.Type, s fieldSpec) error {
	fs := cmd.Flags()
	if typ == durationType {
		def := time.Duration(0)
		if s.def != "" {
			d, err := time.ParseDuration(s.def)
			if err != nil {
				return err
			}
			def = d
		}
		fs.DurationP(s.name, s.short, def, s.usage)
		return nil
	}

	switch typ.Kind() {
	case reflect.String:
		fs.StringP(s.name, s.short, s.def, s.usage)
	case reflect.Int:
		def := 0
		if s.def != "" {
			n, err := strconv.Atoi(s.def)
			if err != nil {
				return err
			}
			def = n
		}
		fs.IntP(s.name, s.short, def, s.usage)
	case reflect.Bool:
		def := false
		if s.def != "" {
			b, err := strconv.ParseBool(s.def)
			if err != nil {
				return err
			}
			def = b
		}
		fs.BoolP(s.name, s.short, def, s.usage)
	case reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", typ.Elem().Kind())
		}
		var def []string
		if s.def != "" {
			def = strings.Split(s.def, ",")
		}
		fs.StringSliceP(s.name, s.short, def, s.usage)
	default:
		return fmt.Errorf("unsupported field type: %s", typ.Kind())
	}
	return nil
}

// ParseFlags copies flag values into the tagged fields
func ParseFlags(cmd *cobra.Command, target interface{}) error {
	v, specs, err := structFields(target)
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := setFieldValue(cmd, v.Field(s.index), s.name); err != nil {
			return fmt.Errorf("parse flag %s: %w", s.name, err)
		}
	}
	return nil
}

func setFieldValue(cmd *cobra.Command, field reflect.Value, name string) error {
	fs := cmd.Flags()
	if field.Type() == durationType {
		d, err := fs.GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		field.SetString(val)
	case reflect.Int:
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
	case reflect.Bool:
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(val)
	case reflect.Slice:
		val, err := fs.GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Overrides returns config key -> value for every changed flag that carries a
// config tag. Call after ParseFlags.
func Overrides(cmd *cobra.Command, target interface{}) (map[string]interface{}, error) {
	v, specs, err := structFields(target)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	for _, s := range specs {
		if s.configKey == "" || !cmd.Flags().Changed(s.name) {
			continue
		}
		field := v.Field(s.index)
		if field.Type() == durationType {
			// viper decodes durations from their string form
			out[s.configKey] = time.Duration(field.Int()).String()
			continue
		}
		out[s.configKey] = field.Interface()
	}
	return out, nil
}

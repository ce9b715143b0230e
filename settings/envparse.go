package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
)

// ParseError occurs when a struct field cannot be set from its environment
// variable.
type ParseError struct {
	Field string
	Value string
	Err   error
}

// Error implements builtin errors.Error.
func (e *ParseError) Error() string {
	segments := []string{e.Field}
	if e.Value != "" {
		segments = append(segments, e.Value)
	}
	segments = append(segments, e.Err.Error())
	return strings.Join(segments, ": ")
}

var errNotStructPtr = errors.New("must be a pointer to a struct")

// parseEnv populates a struct with the retrieved values of environment
// variables declared through `env:"key[,constraint]"` field tags. Supported
// constraints are "required", "opt[a,b,c]" and "range[min..max]". Empty
// variables leave the field's existing (default) value untouched.
func parseEnv(conf interface{}, repository env.Repository) error {
	c := reflect.ValueOf(conf)
	if c.Kind() != reflect.Ptr || c.Elem().Kind() != reflect.Struct {
		return errNotStructPtr
	}
	c = c.Elem()

	var errs []*ParseError
	for i := 0; i < c.NumField(); i++ {
		tag, ok := c.Type().Field(i).Tag.Lookup("env")
		if !ok {
			continue
		}
		key, constraint := parseTag(tag)
		value := repository.Get(key)

		if err := validateConstraint(value, constraint); err != nil {
			errs = append(errs, &ParseError{c.Type().Field(i).Name, value, err})
			continue
		}
		if value == "" {
			continue
		}
		if err := setField(c.Field(i), value, constraint); err != nil {
			errs = append(errs, &ParseError{c.Type().Field(i).Name, value, err})
		}
	}
	if len(errs) > 0 {
		errorString := "failed to parse config:"
		for _, err := range errs {
			errorString += fmt.Sprintf("\n- %s", err)
		}
		return errors.New(errorString)
	}

	return nil
}

func parseTag(tag string) (key, constraint string) {
	if i := strings.Index(tag, ","); i != -1 {
		return tag[:i], tag[i+1:]
	}
	return tag, ""
}

func validateConstraint(value, constraint string) error {
	switch constraintName(constraint) {
	case "":
		return nil
	case "required":
		if value == "" {
			return errors.New("required variable is not present")
		}
	case "opt":
		options := constraintArgs(constraint)
		if !contains(options, value) {
			return fmt.Errorf("value is not in value options (%s)", strings.Join(options, ", "))
		}
	case "range":
		if value == "" {
			return nil
		}
		return validateRange(value, constraint)
	default:
		return fmt.Errorf("invalid constraint (%s)", constraint)
	}
	return nil
}

func constraintName(constraint string) string {
	if i := strings.Index(constraint, "["); i != -1 {
		return constraint[:i]
	}
	return constraint
}

func constraintArgs(constraint string) []string {
	open := strings.Index(constraint, "[")
	end := strings.LastIndex(constraint, "]")
	if open == -1 || end == -1 || end < open {
		return nil
	}
	return strings.Split(constraint[open+1:end], ",")
}

func validateRange(value, constraint string) error {
	args := constraintArgs(constraint)
	if len(args) != 1 {
		return fmt.Errorf("invalid range constraint (%s)", constraint)
	}
	bounds := strings.SplitN(args[0], "..", 2)
	if len(bounds) != 2 {
		return fmt.Errorf("invalid range constraint (%s)", constraint)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("value is not an integer")
	}
	if bounds[0] != "" {
		min, err := strconv.ParseInt(bounds[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid range lower bound (%s)", bounds[0])
		}
		if v < min {
			return fmt.Errorf("value is below the minimum (%d)", min)
		}
	}
	if bounds[1] != "" {
		max, err := strconv.ParseInt(bounds[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid range upper bound (%s)", bounds[1])
		}
		if v > max {
			return fmt.Errorf("value is above the maximum (%d)", max)
		}
	}
	return nil
}

func setField(field reflect.Value, value, constraint string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.New("can't convert to bool")
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.New("can't convert to duration")
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.New("can't convert to int")
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.New("can't convert to float")
		}
		field.SetFloat(f)
	case reflect.Slice:
		field.Set(reflect.ValueOf(strings.Split(value, "|")))
	case reflect.Ptr:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("type is not supported (%s)", field.Type())
		}
		field.Set(reflect.ValueOf(&value))
	default:
		return fmt.Errorf("type is not supported (%s)", field.Kind())
	}
	return nil
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

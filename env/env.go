// Package env wires environment variables into viper and validates them,
// following the generics-based accessor shape the rest of the codebase
// expects: register a validation tag once per var name, then read typed
// values through Get.
package env

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mikeydub/indexing-serv/service/logger"
)

var validators = map[string][]string{}

var v = validator.New()

func init() {
	viper.AutomaticEnv()
	v.RegisterValidation("required_for_env", RequiredForEnv)
}

// RegisterEnvValidation attaches validator tags to an env var name; every
// call to Get for that name re-runs them and logs (does not panic) on
// failure.
func RegisterEnvValidation(name string, tags []string) {
	validators[name] = dedupe(append(validators[name], tags...))
}

// Get returns the env var name as type T, validating any tags registered
// for it. A failed validation is logged and the value is still returned; a
// type mismatch logs and returns T's zero value rather than panicking.
// Callers that require a value should check for the zero value explicitly.
func Get[T any](ctx context.Context, name string) T {
	for _, tag := range validators[name] {
		if err := v.Var(viper.GetString(name), tag); err != nil {
			logger.For(ctx).Errorf("invalid env var: %s, tag: %s, err: %s", name, tag, err.Error())
		}
	}

	raw := viper.Get(name)
	it, ok := raw.(T)
	if !ok {
		if raw == nil || reflect.ValueOf(raw).IsZero() {
			return *new(T)
		}
		logger.For(ctx).Errorf("invalid env var: %s, expected type: %T, got: %T", name, *new(T), raw)
		return *new(T)
	}
	return it
}

// GetString is shorthand for Get[string] used throughout the connection and
// config setup code.
func GetString(name string) string {
	return Get[string](context.Background(), name)
}

// GetInt is shorthand for Get[int].
func GetInt(name string) int {
	return Get[int](context.Background(), name)
}

var RequiredForEnv validator.Func = func(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	spl := strings.Split(s, "=")
	if len(spl) != 2 {
		return false
	}
	return spl[1] == GetString("ENV")
}

func dedupe(src []string) []string {
	result := src[:0]
	seen := make(map[string]bool)
	for _, x := range src {
		if !seen[x] {
			result = append(result, x)
			seen[x] = true
		}
	}
	return result
}

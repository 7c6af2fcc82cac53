package dbguard

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// ErrNotPointer is returned by SetConfigFromEnvVars when given a non-pointer.
var ErrNotPointer = errors.New("config must be a pointer to a struct")

// GetenvOrDefault returns the trimmed value of key, or defaultValue when it is unset or blank.
func GetenvOrDefault(key string, defaultValue string) string {
	str := strings.TrimSpace(os.Getenv(key))
	if str == "" {
		return defaultValue
	}

	return str
}

// GetenvBoolOrDefault parses key as a bool, or returns defaultValue.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(GetenvOrDefault(key, ""))
	if err != nil {
		return defaultValue
	}

	return b
}

// GetenvIntOrDefault parses key as an int64, or returns defaultValue.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	i, err := strconv.ParseInt(GetenvOrDefault(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}

	return i
}

// LocalEnvConfig records whether a local .env file was loaded.
type LocalEnvConfig struct {
	Initialized bool
}

var (
	localEnvConfig     *LocalEnvConfig
	localEnvConfigOnce sync.Once
)

// InitLocalEnvConfig prints the version and environment and, when ENV_NAME is
// "local", loads a .env file from the working directory. It runs once per process.
func InitLocalEnvConfig() *LocalEnvConfig {
	version := GetenvOrDefault("VERSION", "NO-VERSION")
	envName := GetenvOrDefault("ENV_NAME", "development")

	fmt.Printf("VERSION: %s\n\n", version)
	fmt.Printf("ENVIRONMENT NAME: %s\n\n", envName)

	if envName != "local" {
		return nil
	}

	localEnvConfigOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Skipping .env file, using env", envName)

			localEnvConfig = &LocalEnvConfig{Initialized: false}

			return
		}

		fmt.Println("Env vars loaded from .env file")

		localEnvConfig = &LocalEnvConfig{Initialized: true}
	})

	return localEnvConfig
}

// SetConfigFromEnvVars fills the fields of s tagged with `env:"NAME"` from the
// environment. Unset or blank variables leave the field untouched, so callers
// can pre-populate defaults. Supported kinds are string, bool, signed and
// unsigned integers and floats.
func SetConfigFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}

	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("env")
		if !ok || tag == "" {
			continue
		}

		raw := GetenvOrDefault(tag, "")
		if raw == "" {
			continue
		}

		if err := setField(v.Field(i), raw); err != nil {
			return fmt.Errorf("env %s: %w", tag, err)
		}
	}

	return nil
}

func setField(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}

		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}

		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}

		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}

		fv.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", fv.Kind())
	}

	return nil
}

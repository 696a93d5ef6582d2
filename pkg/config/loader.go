package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads the optional env files (".env" in the working directory when none
// are given) and then parses the process environment into v.
// Values already present in the environment win over file values.
func Load[T any](v *T, files ...string) error {
	if v == nil {
		return ErrNilPointer
	}

	// A missing .env file is the normal case outside development.
	_ = godotenv.Load(files...)

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, files ...string) {
	if err := Load(v, files...); err != nil {
		panic(err)
	}
}

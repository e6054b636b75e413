package specutils

import (
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Env describes where the lambda environment says the spec document lives.
// File takes precedence over the s3 location when both are set.
type Env struct {
	File   string `envconfig:"OPENAPI_SPEC_FILE"`
	Region string `envconfig:"OPENAPI_SPEC_REGION"`
	Bucket string `envconfig:"OPENAPI_SPEC_BUCKET"`
	Key    string `envconfig:"OPENAPI_SPEC_KEY"`
}

// Load parses and validates the spec document the environment points at.
func (e Env) Load() (*openapi3.T, error) {
	if e.File != "" {
		return FromFile(e.File)
	}

	if e.Bucket != "" && e.Key != "" {
		return FromS3(e.Region, e.Bucket, e.Key)
	}

	return nil, errors.New("no spec document location configured, set OPENAPI_SPEC_FILE or OPENAPI_SPEC_BUCKET and OPENAPI_SPEC_KEY")
}

// FromEnv reads the spec document location from the process environment and
// loads it.
func FromEnv() (*openapi3.T, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, errors.Wrap(err, "failed reading spec location from environment")
	}

	return env.Load()
}

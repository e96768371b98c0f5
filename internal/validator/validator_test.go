package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigKey(t *testing.T) {
	v := New()

	for _, key := range []string{"DATABASE_URL", "A", "LOG_LEVEL_2"} {
		assert.NoError(t, v.ConfigKey(key), key)
	}
	for _, key := range []string{"", "lowercase", "1LEADING", "_PRIVATE", "BAD-KEY", "WITH SPACE"} {
		assert.Error(t, v.ConfigKey(key), key)
	}
}

func TestStructValidation(t *testing.T) {
	v := New()

	type request struct {
		Key    string `json:"key" validate:"required,configkey"`
		Format string `json:"format" validate:"exportformat"`
	}

	assert.NoError(t, v.Struct(request{Key: "APP_NAME", Format: "csv"}))
	assert.Error(t, v.Struct(request{Key: "bad key", Format: "csv"}))

	err := v.Struct(request{Key: "APP_NAME", Format: "xml"})
	assert.ErrorContains(t, err, "format must be json or csv")
}

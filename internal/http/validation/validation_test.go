package validation

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email  string `json:"customerEmail" validate:"required,email"`
	Amount int64  `json:"amountInCents" validate:"gt=0"`
	Month  string `json:"exp_month,omitempty" validate:"len=2"`
	NoTag  string `validate:"required"`
}

func TestFromBindError(t *testing.T) {
	dst := &sample{Email: "nope", Month: "1"}
	err := validator.New().Struct(dst)

	got := FromBindError(err, dst)
	assert.Equal(t, FieldErrors{
		"customerEmail": "Must be a valid email address.",
		"amountInCents": "Must be greater than 0.",
		"exp_month":     "Must have exactly 2 characters.",
		"NoTag":         "This field is required.",
	}, got)
}

func TestFromBindError_NotValidation(t *testing.T) {
	var v sample
	err := json.Unmarshal([]byte(`{"amountInCents":"ten"}`), &v)
	got := FromBindError(err, &v)
	assert.Contains(t, got, "_")
}

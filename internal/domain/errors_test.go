package domain

import (
	"errors"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("client.url", "must not be empty")

	want := "validation error: client.url: must not be empty"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var ve *ValidationError
	if !errors.As(error(err), &ve) {
		t.Fatal("errors.As should match *ValidationError")
	}
	if ve.Field != "client.url" {
		t.Errorf("Field = %q, want client.url", ve.Field)
	}
}

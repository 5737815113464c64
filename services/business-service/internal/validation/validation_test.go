package validation

import (
	"errors"
	"testing"
)

type form struct {
	Name    string  `json:"name" validate:"required,min=2"`
	Email   string  `json:"email" validate:"required,email"`
	Website string  `json:"website" validate:"omitempty,url"`
	Level   int     `json:"price_level" validate:"omitempty,min=1,max=4"`
	City    *string `json:"city" validate:"omitempty,min=2"`
}

func TestStructCollectsFields(t *testing.T) {
	city := "X"
	err := Struct(form{Name: "A", Email: "nope", Website: "not a url", Level: 9, City: &city})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	want := map[string]string{
		"name":        "must be at least 2 characters",
		"email":       "must be a valid email address",
		"website":     "must be a valid URL",
		"price_level": "must be at most 4",
		"city":        "must be at least 2 characters",
	}
	for field, msg := range want {
		if verr.Fields[field] != msg {
			t.Errorf("%s: expected %q, got %q", field, msg, verr.Fields[field])
		}
	}
}

func TestStructValid(t *testing.T) {
	if err := Struct(form{Name: "Al", Email: "al@example.com"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestRequiredMessage(t *testing.T) {
	err := Struct(form{})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if verr.Fields["name"] != "is required" || verr.Fields["email"] != "is required" {
		t.Fatalf("unexpected fields %v", verr.Fields)
	}
}

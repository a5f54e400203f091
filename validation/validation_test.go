package validation

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/kbukum/filterkit/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("name", "codec")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("name", "")
	if !v2.HasErrors() {
		t.Error("expected error for empty required field")
	}

	v3 := New()
	v3.Required("name", "   ")
	if !v3.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorMaxLength(t *testing.T) {
	v := New().MaxLength("name", "abc", 3)
	if v.HasErrors() {
		t.Error("expected no error at the limit")
	}

	v2 := New().MaxLength("name", "abcd", 3)
	if !v2.HasErrors() {
		t.Fatal("expected error above the limit")
	}
	if v2.Errors()[0].Message != "must be 3 characters or less" {
		t.Errorf("unexpected message %q", v2.Errors()[0].Message)
	}
}

func TestValidatorPattern(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]+$`)

	if New().Pattern("name", "codec", re).HasErrors() {
		t.Error("expected match")
	}
	if !New().Pattern("name", "Codec!", re).HasErrors() {
		t.Error("expected mismatch")
	}
	if New().Pattern("name", "", re).HasErrors() {
		t.Error("expected empty value to be skipped")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"json", "console"}

	if New().OneOf("format", "json", allowed).HasErrors() {
		t.Error("expected allowed value to pass")
	}
	v := New().OneOf("format", "xml", allowed)
	if !v.HasErrors() {
		t.Fatal("expected error for disallowed value")
	}
	if !strings.Contains(v.Errors()[0].Message, "json, console") {
		t.Errorf("expected allowed values in message, got %q", v.Errors()[0].Message)
	}
}

func TestValidatorCustom(t *testing.T) {
	if New().Custom(true, "x", "custom error").HasErrors() {
		t.Error("expected no error when condition holds")
	}
	v2 := New().Custom(false, "x", "custom error")
	if v2.Errors()[0].Message != "custom error" {
		t.Errorf("expected 'custom error', got %q", v2.Errors()[0].Message)
	}
}

func TestValidatorValidate(t *testing.T) {
	if New().Required("name", "codec").Validate() != nil {
		t.Error("expected nil for valid input")
	}

	appErr := New().Required("name", "").Required("chain", "").Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected %s, got %s", errors.ErrCodeInvalidInput, appErr.Code)
	}
	if appErr.Details == nil {
		t.Fatal("expected details in error")
	}
	if !strings.Contains(appErr.Message, "name") || !strings.Contains(appErr.Message, "chain") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

func TestValidatorErr(t *testing.T) {
	if err := New().Err(); err != nil {
		t.Errorf("expected untyped nil, got %v", err)
	}
	if err := New().Required("name", "").Err(); err == nil {
		t.Error("expected error")
	}
}

func TestValidatorNested(t *testing.T) {
	if New().Nested("tls", nil).HasErrors() {
		t.Error("expected nil error to be ignored")
	}

	inner := New().Required("addr", "").Err()
	v := New().Nested("redis", inner).Nested("kafka.tls", fmt.Errorf("cert without key"))
	got := v.Errors()
	if len(got) != 2 {
		t.Fatalf("expected 2 errors, got %v", got)
	}
	if got[0].Field != "redis.addr" || got[0].Message != "is required" {
		t.Errorf("expected flattened redis.addr error, got %+v", got[0])
	}
	if got[1].Field != "kafka.tls" || got[1].Message != "cert without key" {
		t.Errorf("expected plain error under kafka.tls, got %+v", got[1])
	}
}

type adminSection struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

type serviceSection struct {
	Admin      adminSection `mapstructure:"admin"`
	SampleRate float64      `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Format     string       `json:"format" validate:"omitempty,oneof=json console"`
}

func TestStructValidateValid(t *testing.T) {
	cfg := serviceSection{Admin: adminSection{Addr: "127.0.0.1:8080"}, SampleRate: 0.5, Format: "json"}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	err := Validate(serviceSection{Admin: adminSection{Addr: "nope"}, SampleRate: 2, Format: "xml"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok {
		t.Fatalf("expected field errors, got %T", appErr.Details["fields"])
	}

	got := map[string]string{}
	for _, f := range fields {
		got[f.Field] = f.Message
	}
	want := map[string]string{
		"admin.addr":  "must be a host:port address",
		"sample_rate": "must be less than or equal to 1",
		"format":      "must be one of: json console",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s: expected %q, got %q", field, msg, got[field])
		}
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Addr":       "addr",
		"SampleRate": "sample_rate",
		"ID":         "i_d",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

package errors

import (
	"errors"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		if !IsCode(err, CodeInternal) {
			t.Error("expected IsCode to return true for wrapped CodeInternal")
		}
	})
}

func TestDomainError_PersistenceCodes(t *testing.T) {
	err := AddContext(New(CodeCorruptModuleRecord, "checksum mismatch"), CtxModule, "foo.bar")
	if !IsCode(err, CodeCorruptModuleRecord) {
		t.Fatalf("expected corrupt record code, got %v", err)
	}
	if CodeOf(err) != CodeCorruptModuleRecord {
		t.Fatalf("expected CodeOf to report %s, got %s", CodeCorruptModuleRecord, CodeOf(err))
	}

	plain := AddContext(errors.New("disk full"), CtxPath, "/tmp/db")
	if CodeOf(plain) != CodeInternal {
		t.Fatalf("expected non-domain errors to be wrapped as internal, got %s", CodeOf(plain))
	}
	if CodeOf(errors.New("x")) != "" {
		t.Fatal("expected empty code for plain errors")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeDuplicateModule, "module %q already registered at %s", "foo", "a/foo.py")
	expected := `[DUPLICATE_MODULE] module "foo" already registered at a/foo.py`
	if err.Error() != expected {
		t.Errorf("expected %s, got %s", expected, err.Error())
	}
}

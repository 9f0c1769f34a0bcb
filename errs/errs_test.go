package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTaxonomyIsMatchable(t *testing.T) {
	var cerr *ConfigurationError
	if !errors.As(Configf("scan", "bad value %d", 7), &cerr) {
		t.Error("Configf not matchable as ConfigurationError")
	}
	if cerr.Phase != "scan" || !strings.Contains(cerr.Reason, "7") {
		t.Errorf("unexpected fields: %+v", cerr)
	}

	var serr *StructuralError
	if !errors.As(Structuralf("clean", "cycle at %d", 3), &serr) {
		t.Error("Structuralf not matchable as StructuralError")
	}
}

func TestWrappedErrorsUnwrap(t *testing.T) {
	cause := errors.New("underlying")

	verr := Validationf("scan", cause, "bad regex")
	if !errors.Is(verr, cause) {
		t.Error("ValidationError should unwrap to its cause")
	}

	kerr := Cryptof("secure", "sign Title", cause)
	if !errors.Is(kerr, cause) {
		t.Error("CryptoError should unwrap to its cause")
	}
	if msg := kerr.Error(); !strings.Contains(msg, "sign Title") {
		t.Errorf("message missing operation: %s", msg)
	}
}

func TestWrappingThroughFmt(t *testing.T) {
	inner := Structuralf("clean", "page tree cycle at object 2")
	outer := fmt.Errorf("clean stage: %w", inner)
	var serr *StructuralError
	if !errors.As(outer, &serr) {
		t.Error("typed error lost through %%w wrapping")
	}
}

package scan

import (
	"github.com/kartik4091/pdfsanitize/errs"
	"github.com/kartik4091/pdfsanitize/ir/raw"
)

// DetectorFunc is a caller-supplied detector. It returns a match and
// true when it fires; returned matches default to confidence 1.0.
type DetectorFunc func(doc *raw.Document, ref raw.ObjectRef, obj raw.Object) (*Match, bool)

type namedDetector struct {
	name string
	fn   DetectorFunc
}

// RegisterDetector adds a custom detector, evaluated after the builtin
// checks and patterns. Names must be unique.
func (s *Scanner) RegisterDetector(name string, fn DetectorFunc) error {
	if name == "" {
		return errs.Configf("scan", "detector needs a name")
	}
	if fn == nil {
		return errs.Configf("scan", "detector %s has nil func", name)
	}
	for _, d := range s.detectors {
		if d.name == name {
			return errs.Configf("scan", "detector %s already registered", name)
		}
	}
	s.detectors = append(s.detectors, namedDetector{name: name, fn: fn})
	return nil
}

package scan

import (
	"encoding/hex"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kartik4091/pdfsanitize/errs"
)

// patternFile is the on-disk shape of a custom pattern set.
//
//	patterns:
//	  - id: watermark-tag
//	    kind: custom
//	    description: vendor watermark bytes
//	    hex: "57415445524d41524b"
//	    mask: "ffffffffffffffffff"
//	  - id: tracking-url
//	    kind: custom
//	    regex: 'https?://track\.'
type patternFile struct {
	Patterns []patternEntry `yaml:"patterns"`
}

type patternEntry struct {
	ID          string `yaml:"id"`
	Kind        string `yaml:"kind"`
	Description string `yaml:"description"`
	Hex         string `yaml:"hex"`
	Mask        string `yaml:"mask"`
	Regex       string `yaml:"regex"`
}

// LoadPatterns reads custom patterns from a YAML file. The returned
// patterns are not yet compiled; pass them to New via
// Config.CustomPatterns, which validates them.
func LoadPatterns(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Validationf("scan", err, "reading pattern file %s", path)
	}
	return ParsePatterns(data)
}

// ParsePatterns parses a YAML pattern document.
func ParsePatterns(data []byte) ([]Pattern, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errs.Validationf("scan", err, "parsing pattern file")
	}
	out := make([]Pattern, 0, len(file.Patterns))
	for _, e := range file.Patterns {
		p := Pattern{
			ID:          e.ID,
			Description: e.Description,
			Regex:       e.Regex,
		}
		kind, err := parseKind(e.Kind)
		if err != nil {
			return nil, err
		}
		p.Kind = kind
		if e.Hex != "" {
			b, err := hex.DecodeString(e.Hex)
			if err != nil {
				return nil, errs.Validationf("scan", err, "pattern %s: bad hex", e.ID)
			}
			p.Bytes = b
		}
		if e.Mask != "" {
			m, err := hex.DecodeString(e.Mask)
			if err != nil {
				return nil, errs.Validationf("scan", err, "pattern %s: bad mask hex", e.ID)
			}
			p.Mask = m
		}
		out = append(out, p)
	}
	return out, nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "embedded-file":
		return KindEmbeddedFile, nil
	case "metadata":
		return KindMetadata, nil
	case "javascript":
		return KindJavaScript, nil
	case "form-data":
		return KindFormData, nil
	case "annotation":
		return KindAnnotation, nil
	case "application-trace":
		return KindApplicationTrace, nil
	case "system-trace":
		return KindSystemTrace, nil
	case "user-trace":
		return KindUserTrace, nil
	case "custom", "":
		return KindCustom, nil
	default:
		return 0, errs.Validationf("scan", nil, "unknown pattern kind %q", s)
	}
}

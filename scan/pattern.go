package scan

import (
	"regexp"

	"github.com/kartik4091/pdfsanitize/errs"
)

// Kind classifies what a match means.
type Kind int

const (
	KindEmbeddedFile Kind = iota
	KindMetadata
	KindJavaScript
	KindFormData
	KindAnnotation
	KindApplicationTrace
	KindSystemTrace
	KindUserTrace
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindEmbeddedFile:
		return "embedded-file"
	case KindMetadata:
		return "metadata"
	case KindJavaScript:
		return "javascript"
	case KindFormData:
		return "form-data"
	case KindAnnotation:
		return "annotation"
	case KindApplicationTrace:
		return "application-trace"
	case KindSystemTrace:
		return "system-trace"
	case KindUserTrace:
		return "user-trace"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// isTraceKind reports whether matches of this kind only fire from
// their structural context (Info dictionary, XMP stream) instead of
// the general pattern sweep.
func (k Kind) isTraceKind() bool {
	switch k {
	case KindMetadata, KindApplicationTrace, KindSystemTrace, KindUserTrace:
		return true
	}
	return false
}

// Pattern describes one thing the scanner looks for. Exactly one of
// Bytes or Regex must be set. When Mask is set it must be the same
// length as Bytes; byte i of a window matches when
// window[i]&Mask[i] == Bytes[i].
type Pattern struct {
	ID          string
	Kind        Kind
	Description string
	Bytes       []byte
	Mask        []byte
	Regex       string

	re *regexp.Regexp
}

func (p *Pattern) compile() error {
	if p.ID == "" {
		return errs.Validationf("scan", nil, "pattern without id")
	}
	hasBytes := len(p.Bytes) > 0
	hasRegex := p.Regex != ""
	if hasBytes == hasRegex {
		return errs.Validationf("scan", nil, "pattern %s: exactly one of bytes or regex required", p.ID)
	}
	if len(p.Mask) > 0 {
		if !hasBytes {
			return errs.Validationf("scan", nil, "pattern %s: mask requires bytes", p.ID)
		}
		if len(p.Mask) != len(p.Bytes) {
			return errs.Validationf("scan", nil, "pattern %s: mask length %d != bytes length %d", p.ID, len(p.Mask), len(p.Bytes))
		}
	}
	if hasRegex {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return errs.Validationf("scan", err, "pattern %s: bad regex", p.ID)
		}
		p.re = re
	}
	return nil
}

// matchBytes slides the pattern over data and returns the first match.
func (p *Pattern) matchBytes(data []byte) (start, end int, ok bool) {
	n := len(p.Bytes)
	if n == 0 || len(data) < n {
		return 0, 0, false
	}
	for i := 0; i+n <= len(data); i++ {
		if p.windowMatches(data[i : i+n]) {
			return i, i + n, true
		}
	}
	return 0, 0, false
}

func (p *Pattern) windowMatches(window []byte) bool {
	if len(p.Mask) == 0 {
		for i := range p.Bytes {
			if window[i] != p.Bytes[i] {
				return false
			}
		}
		return true
	}
	for i := range p.Bytes {
		if window[i]&p.Mask[i] != p.Bytes[i] {
			return false
		}
	}
	return true
}

// matchString runs a regex pattern against text.
func (p *Pattern) matchString(text []byte) (start, end int, ok bool) {
	if p.re == nil {
		return 0, 0, false
	}
	loc := p.re.FindIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

// BuiltinPatterns returns the default pattern set: end-of-file and
// archive markers hidden inside stream payloads, script fragments, and
// tool/timestamp fingerprints for the trace contexts.
func BuiltinPatterns() []Pattern {
	return []Pattern{
		{
			ID:          "embedded-eof-marker",
			Kind:        KindEmbeddedFile,
			Description: "%%EOF marker inside stream payload",
			Bytes:       []byte{0x25, 0x25, 0x45, 0x4F, 0x46},
		},
		{
			ID:          "zip-local-header",
			Kind:        KindEmbeddedFile,
			Description: "ZIP local file header inside stream payload",
			Bytes:       []byte{0x50, 0x4B, 0x03, 0x04},
		},
		{
			ID:          "script-fragment",
			Kind:        KindJavaScript,
			Description: "script call in string content",
			Regex:       `(?i)\b(app\.alert|this\.exportDataObject|util\.printf|eval)\s*\(`,
		},
		{
			ID:          "producer-trace",
			Kind:        KindApplicationTrace,
			Description: "producing application fingerprint",
			Regex:       `(?i)(adobe|acrobat|ghostscript|itext|pdftk|libreoffice|openoffice|microsoft)`,
		},
		{
			ID:          "xmp-timestamp",
			Kind:        KindMetadata,
			Description: "XMP creation or modification timestamp",
			Regex:       `(?i)(xmp:CreateDate|xmp:ModifyDate|xmp:MetadataDate|xap:CreateDate)`,
		},
		{
			ID:          "xmp-creator-tool",
			Kind:        KindMetadata,
			Description: "XMP creator tool fingerprint",
			Regex:       `(?i)(xmp:CreatorTool|pdf:Producer)`,
		},
	}
}

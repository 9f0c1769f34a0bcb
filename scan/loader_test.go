package scan

import (
	"os"
	"path/filepath"
	"testing"
)

const samplePatternYAML = `
patterns:
  - id: vendor-watermark
    kind: custom
    description: vendor watermark bytes
    hex: "57415445524d41524b"
  - id: tracking-url
    kind: metadata
    regex: 'https?://track\.'
`

func TestParsePatterns(t *testing.T) {
	patterns, err := ParsePatterns([]byte(samplePatternYAML))
	if err != nil {
		t.Fatalf("ParsePatterns failed: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
	if patterns[0].ID != "vendor-watermark" || string(patterns[0].Bytes) != "WATERMARK" {
		t.Errorf("first pattern = %+v", patterns[0])
	}
	if patterns[1].Kind != KindMetadata || patterns[1].Regex == "" {
		t.Errorf("second pattern = %+v", patterns[1])
	}

	// Loaded patterns must survive scanner construction.
	cfg := DefaultConfig()
	cfg.CustomPatterns = patterns
	if _, err := New(cfg); err != nil {
		t.Fatalf("New rejected loaded patterns: %v", err)
	}
}

func TestParsePatternsRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"bad kind": "patterns:\n  - id: x\n    kind: bogus\n    hex: \"41\"\n",
		"bad hex":  "patterns:\n  - id: x\n    hex: \"zz\"\n",
		"not yaml": ":\n  - [",
	}
	for name, input := range cases {
		if _, err := ParsePatterns([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(samplePatternYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	patterns, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns failed: %v", err)
	}
	if len(patterns) != 2 {
		t.Errorf("expected 2 patterns, got %d", len(patterns))
	}

	if _, err := LoadPatterns(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

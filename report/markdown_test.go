package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kartik4091/pdfsanitize/clean"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/scan"
	"github.com/kartik4091/pdfsanitize/secure"
)

func TestMarkdownWriterFullSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	err := w.Write(&Summary{
		RunID:     "run-123",
		Generated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Clean:     &clean.Stats{ResourcesProcessed: 10, ResourcesRemoved: 2},
		Scan: &scan.Result{
			Matches: map[raw.ObjectRef]scan.Match{
				{Num: 4}: {
					PatternID:  "embedded-eof-marker",
					Kind:       scan.KindEmbeddedFile,
					Location:   scan.Location{ObjectID: 4, Context: `"..%%EOF"`},
					Confidence: 1.0,
				},
			},
			Stats: scan.Stats{ObjectsScanned: 10, InstancesFound: 1, PatternsMatched: 1},
		},
		Secure: &secure.Stats{FieldsEncrypted: 4, FieldsSigned: 4, VerificationsPerformed: 4},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Sanitization Report",
		"run-123",
		"## Resource Cleaning",
		"## Hidden Data Scan",
		"embedded-eof-marker",
		"## Metadata Protection",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdownWriterOmitsMissingStages(t *testing.T) {
	var buf bytes.Buffer
	w := NewMarkdownWriter(&buf)

	err := w.Write(&Summary{
		RunID:     "run-456",
		Generated: time.Now(),
		Scan:      &scan.Result{},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "Resource Cleaning") {
		t.Error("report should omit clean section when the stage did not run")
	}
	if !strings.Contains(out, "No hidden data found.") {
		t.Error("empty scan should note no findings")
	}
}

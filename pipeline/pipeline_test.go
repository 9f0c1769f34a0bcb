package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kartik4091/pdfsanitize/clean"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/scan"
	"github.com/kartik4091/pdfsanitize/secure"
)

// fullDoc builds a document exercising all three stages: an unused
// font to clean, a stream with an embedded EOF marker to find, and an
// Info dictionary to encrypt.
func fullDoc() *raw.Document {
	doc := raw.NewDocument()

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog
	doc.Trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 3}] = page

	unusedFont := raw.Dict()
	unusedFont.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	unusedFont.Set(raw.NameLiteral("Name"), raw.NameLiteral("F9"))
	doc.Objects[raw.ObjectRef{Num: 4}] = unusedFont

	doc.Objects[raw.ObjectRef{Num: 5}] = raw.NewStream(
		raw.Dict(),
		append([]byte("data "), 0x25, 0x25, 0x45, 0x4F, 0x46))

	info := raw.Dict()
	info.Set(raw.NameLiteral("Title"), raw.Str([]byte("secret title")))
	doc.Objects[raw.ObjectRef{Num: 6}] = info
	doc.SetInfo(raw.ObjectRef{Num: 6})

	return doc
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	scanner, err := scan.New(scan.DefaultConfig())
	if err != nil {
		t.Fatalf("scan.New failed: %v", err)
	}
	handler := secure.New()
	key := bytes.Repeat([]byte{0x24}, 32)
	salt := bytes.Repeat([]byte{0x42}, 16)
	if err := handler.ConfigureEncryption(key, secure.AlgorithmAESCBC, 256, salt, 10000); err != nil {
		t.Fatalf("ConfigureEncryption failed: %v", err)
	}
	return New(
		WithCleaner(clean.New(clean.DefaultConfig())),
		WithScanner(scanner),
		WithHandler(handler),
	)
}

func TestPipelineRunsAllStages(t *testing.T) {
	p := newPipeline(t)
	doc := fullDoc()

	result, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := uuid.Parse(result.RunID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", result.RunID, err)
	}
	if result.Clean == nil || result.Clean.ResourcesRemoved != 1 {
		t.Errorf("clean stats = %+v, want 1 removal", result.Clean)
	}
	if result.Scan == nil || result.Scan.Stats.InstancesFound != 1 {
		t.Errorf("scan stats = %+v, want 1 match", result.Scan)
	}
	if result.Secure == nil || result.Secure.FieldsEncrypted != 1 {
		t.Errorf("secure stats = %+v, want 1 encrypted field", result.Secure)
	}

	info := doc.Objects[raw.ObjectRef{Num: 6}].(raw.Dictionary)
	title, _ := raw.DictString(info, "Title")
	if bytes.Equal(title, []byte("secret title")) {
		t.Error("Title still plaintext after pipeline run")
	}
}

func TestPipelineSkipsUnsetStages(t *testing.T) {
	scanner, err := scan.New(scan.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	p := New(WithScanner(scanner))
	doc := fullDoc()

	result, err := p.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Clean != nil || result.Secure != nil {
		t.Error("unset stages should leave nil stats")
	}
	if result.Scan == nil {
		t.Error("scan stage should have run")
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 4}]; !ok {
		t.Error("document mutated without a cleaner configured")
	}
}

func TestPipelineAbortsOnStageFailure(t *testing.T) {
	// Unconfigured handler makes the secure stage fail.
	p := New(WithHandler(secure.New()))
	result, err := p.Run(context.Background(), fullDoc())
	if err == nil {
		t.Fatal("expected secure stage failure")
	}
	if !strings.Contains(err.Error(), "secure stage") {
		t.Errorf("error should name the failing stage: %v", err)
	}
	if result == nil || result.RunID == "" {
		t.Error("partial result with run id expected on failure")
	}
}

func TestPipelineWriteReport(t *testing.T) {
	p := newPipeline(t)
	result, err := p.Run(context.Background(), fullDoc())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var buf bytes.Buffer
	if err := p.WriteReport(result, &buf); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, result.RunID) {
		t.Error("report missing run id")
	}
	if !strings.Contains(out, "embedded-eof-marker") {
		t.Error("report missing scan finding")
	}
}

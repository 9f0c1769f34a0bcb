// Package scan searches a document's object graph for hidden data:
// embedded files, script payloads, form fields, annotations, and
// traces of the producing application or its users. Matching is
// read-only; the scanner never mutates the document.
package scan

import (
	"context"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/kartik4091/pdfsanitize/errs"
	"github.com/kartik4091/pdfsanitize/ir/raw"
	"github.com/kartik4091/pdfsanitize/observability"
)

// Location pinpoints where in the graph a match occurred.
type Location struct {
	ObjectID int
	Start    int
	End      int
	Context  string
}

// Match is one finding. Confidence is always 1.0 for direct pattern
// hits; Config.ConfidenceThreshold (or FilterMatches) prunes below it.
type Match struct {
	PatternID  string
	Kind       Kind
	Location   Location
	Confidence float64
	Metadata   map[string]string
	Analysis   string
}

// Config controls a scan.
type Config struct {
	ScanEmbeddedFiles bool
	ScanMetadata      bool
	ScanJavaScript    bool
	ScanFormData      bool
	ScanAnnotations   bool
	// CustomPatterns are matched after the builtin set, in order.
	CustomPatterns []Pattern
	// ConfidenceThreshold drops matches below it from the registry.
	ConfidenceThreshold float64
	// MaxDepth bounds recursion into nested direct dictionaries and
	// arrays while collecting strings. Zero means defaultMaxDepth.
	MaxDepth int
	// MaxObjectSize skips stream payloads larger than this many bytes.
	// Zero means no limit.
	MaxObjectSize int64
	// Parallelism is the number of scan workers. Zero and one both
	// mean sequential.
	Parallelism int
}

const defaultMaxDepth = 8

// DefaultConfig enables every detector with no size limit.
func DefaultConfig() Config {
	return Config{
		ScanEmbeddedFiles: true,
		ScanMetadata:      true,
		ScanJavaScript:    true,
		ScanFormData:      true,
		ScanAnnotations:   true,
	}
}

// Stats reports what a scan covered.
type Stats struct {
	ObjectsScanned  int
	ObjectsSkipped  int
	InstancesFound  int
	PatternsMatched int
	Duration        time.Duration
}

// Result is the outcome of one scan pass. The registry holds at most
// one match per object.
type Result struct {
	Matches map[raw.ObjectRef]Match
	Stats   Stats
}

// Scanner runs configured detectors over documents. Construction
// validates the configuration and compiles every pattern, so Scan
// itself cannot fail on pattern errors.
type Scanner struct {
	config    Config
	patterns  []Pattern
	detectors []namedDetector
	log       observability.Logger
	tracer    observability.Tracer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used during scanning.
func WithLogger(l observability.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// WithTracer sets the tracer used during scanning.
func WithTracer(t observability.Tracer) Option {
	return func(s *Scanner) { s.tracer = t }
}

// New creates a Scanner, compiling builtin and custom patterns.
func New(config Config, opts ...Option) (*Scanner, error) {
	if config.Parallelism < 0 {
		return nil, errs.Configf("scan", "parallelism must be >= 0, got %d", config.Parallelism)
	}
	if config.MaxObjectSize < 0 {
		return nil, errs.Configf("scan", "max object size must be >= 0, got %d", config.MaxObjectSize)
	}
	if config.MaxDepth < 0 {
		return nil, errs.Configf("scan", "max depth must be >= 0, got %d", config.MaxDepth)
	}
	if config.ConfidenceThreshold < 0 || config.ConfidenceThreshold > 1 {
		return nil, errs.Configf("scan", "confidence threshold must be in [0,1], got %v", config.ConfidenceThreshold)
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = defaultMaxDepth
	}
	s := &Scanner{
		config: config,
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	all := append(BuiltinPatterns(), config.CustomPatterns...)
	for i := range all {
		if err := all[i].compile(); err != nil {
			return nil, err
		}
	}
	s.patterns = all
	return s, nil
}

// Scan runs every configured detector over doc. Failures inside a
// single object are recorded and scanning moves on; only a cancelled
// context aborts the pass.
func (s *Scanner) Scan(ctx context.Context, doc *raw.Document) (*Result, error) {
	ctx, span := s.tracer.StartSpan(ctx, "scan.Scan")
	defer span.Finish()

	start := time.Now()
	var result *Result
	var err error
	if s.config.Parallelism > 1 {
		result, err = s.scanParallel(ctx, doc)
	} else {
		result, err = s.scanSequential(ctx, doc)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	s.applyThreshold(result)
	s.countPatterns(result)
	result.Stats.Duration = time.Since(start)
	span.SetTag(observability.MetricMatchesFound, result.Stats.InstancesFound)
	s.log.Info("scan complete",
		observability.Int("objects", result.Stats.ObjectsScanned),
		observability.Int("skipped", result.Stats.ObjectsSkipped),
		observability.Int("instances", result.Stats.InstancesFound),
		observability.Int("patterns", result.Stats.PatternsMatched),
		observability.Duration("duration", result.Stats.Duration))
	return result, nil
}

func (s *Scanner) applyThreshold(result *Result) {
	if s.config.ConfidenceThreshold <= 0 {
		return
	}
	for ref, m := range result.Matches {
		if m.Confidence < s.config.ConfidenceThreshold {
			delete(result.Matches, ref)
		}
	}
	result.Stats.InstancesFound = len(result.Matches)
}

func (s *Scanner) countPatterns(result *Result) {
	seen := make(map[string]struct{})
	for _, m := range result.Matches {
		seen[m.PatternID] = struct{}{}
	}
	result.Stats.PatternsMatched = len(seen)
}

func (s *Scanner) scanSequential(ctx context.Context, doc *raw.Document) (*Result, error) {
	result := &Result{Matches: make(map[raw.ObjectRef]Match)}
	infoRef, hasInfo := doc.Info()
	for _, ref := range doc.SortedRefs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, scanned := s.scanObject(doc, ref, doc.Objects[ref], hasInfo && ref == infoRef)
		if !scanned {
			result.Stats.ObjectsSkipped++
			continue
		}
		result.Stats.ObjectsScanned++
		if m != nil {
			result.Matches[ref] = *m
			result.Stats.InstancesFound++
		}
	}
	return result, nil
}

// scanObject evaluates detectors against one object and returns at
// most one match. Evaluation order is fixed: structural script,
// embedded-file, form and annotation checks, then trace checks, then
// patterns in registration order, then custom detectors. The first hit
// wins.
func (s *Scanner) scanObject(doc *raw.Document, ref raw.ObjectRef, obj raw.Object, isInfo bool) (*Match, bool) {
	dict, _ := raw.StreamDict(obj)

	if stream, ok := obj.(raw.Stream); ok && s.config.MaxObjectSize > 0 && stream.Length() > s.config.MaxObjectSize {
		s.log.Warn("skipping oversized stream",
			observability.Int("object", ref.Num),
			observability.Int64("size", stream.Length()))
		return nil, false
	}

	if s.config.ScanJavaScript && dict != nil {
		if m := s.detectJavaScript(ref, dict); m != nil {
			return m, true
		}
	}
	if s.config.ScanEmbeddedFiles && dict != nil {
		if m := s.detectEmbeddedFile(ref, dict); m != nil {
			return m, true
		}
	}
	if s.config.ScanFormData && dict != nil {
		if m := s.detectFormField(ref, dict); m != nil {
			return m, true
		}
	}
	if s.config.ScanAnnotations && dict != nil {
		if m := s.detectAnnotation(ref, dict); m != nil {
			return m, true
		}
	}
	if s.config.ScanMetadata {
		if m := s.detectTraces(ref, obj, dict, isInfo); m != nil {
			return m, true
		}
	}
	if m := s.matchPatterns(ref, obj, dict); m != nil {
		return m, true
	}
	for _, d := range s.detectors {
		if m, hit := d.fn(doc, ref, obj); hit {
			if m.Confidence == 0 {
				m.Confidence = 1.0
			}
			return m, true
		}
	}
	return nil, true
}

func (s *Scanner) detectJavaScript(ref raw.ObjectRef, dict raw.Dictionary) *Match {
	action, _ := raw.DictName(dict, "S")
	_, hasJS := dict.Get(raw.NameLiteral("JS"))
	if action != "JavaScript" && !hasJS {
		return nil
	}
	m := &Match{
		PatternID:  "javascript-action",
		Kind:       KindJavaScript,
		Location:   Location{ObjectID: ref.Num},
		Confidence: 1.0,
		Metadata:   map[string]string{"action": action},
	}
	if src, ok := raw.DictString(dict, "JS"); ok {
		m.Location.End = len(src)
		m.Location.Context = contextSnippet(src, 0, len(src))
		m.Analysis = assessJavaScript(string(src))
	}
	return m
}

func (s *Scanner) detectEmbeddedFile(ref raw.ObjectRef, dict raw.Dictionary) *Match {
	typ, _ := raw.DictName(dict, "Type")
	_, hasEF := dict.Get(raw.NameLiteral("EF"))
	if typ != "Filespec" && typ != "EmbeddedFile" && !hasEF {
		return nil
	}
	meta := map[string]string{"type": typ}
	if name, ok := raw.DictString(dict, "F"); ok {
		meta["filename"] = string(name)
	}
	return &Match{
		PatternID:  "filespec-entry",
		Kind:       KindEmbeddedFile,
		Location:   Location{ObjectID: ref.Num},
		Confidence: 1.0,
		Metadata:   meta,
	}
}

// detectFormField flags interactive form fields, which retain whatever
// the user last typed even when the page no longer renders them.
func (s *Scanner) detectFormField(ref raw.ObjectRef, dict raw.Dictionary) *Match {
	fieldType, ok := raw.DictName(dict, "FT")
	if !ok {
		return nil
	}
	meta := map[string]string{"field_type": fieldType}
	if name, ok := raw.DictString(dict, "T"); ok {
		meta["name"] = string(name)
	}
	m := &Match{
		PatternID:  "form-field",
		Kind:       KindFormData,
		Location:   Location{ObjectID: ref.Num},
		Confidence: 1.0,
		Metadata:   meta,
	}
	if value, ok := raw.DictString(dict, "V"); ok {
		m.Location.End = len(value)
		m.Location.Context = contextSnippet(value, 0, len(value))
		meta["has_value"] = "true"
	}
	return m
}

func (s *Scanner) detectAnnotation(ref raw.ObjectRef, dict raw.Dictionary) *Match {
	typ, _ := raw.DictName(dict, "Type")
	if typ != "Annot" {
		return nil
	}
	subtype, _ := raw.DictName(dict, "Subtype")
	m := &Match{
		PatternID:  "annotation",
		Kind:       KindAnnotation,
		Location:   Location{ObjectID: ref.Num},
		Confidence: 1.0,
		Metadata:   map[string]string{"subtype": subtype},
	}
	if contents, ok := raw.DictString(dict, "Contents"); ok {
		m.Location.End = len(contents)
		m.Location.Context = contextSnippet(contents, 0, len(contents))
	}
	return m
}

// detectTraces inspects the trace contexts: Producer/Creator keys on
// any dictionary (application traces), the Info dictionary (user and
// system traces), and XMP metadata streams.
func (s *Scanner) detectTraces(ref raw.ObjectRef, obj raw.Object, dict raw.Dictionary, isInfo bool) *Match {
	if dict != nil {
		if m := s.detectApplicationTrace(ref, dict); m != nil {
			return m
		}
	}
	if isInfo && dict != nil {
		if author, ok := raw.DictString(dict, "Author"); ok && len(author) > 0 {
			return &Match{
				PatternID:  "author-trace",
				Kind:       KindUserTrace,
				Location:   Location{ObjectID: ref.Num, End: len(author), Context: contextSnippet(author, 0, len(author))},
				Confidence: 1.0,
				Metadata:   map[string]string{"field": "Author"},
			}
		}
		for _, key := range []string{"CreationDate", "ModDate"} {
			if stamp, ok := raw.DictString(dict, key); ok && len(stamp) > 0 {
				return &Match{
					PatternID:  "timestamp-trace",
					Kind:       KindSystemTrace,
					Location:   Location{ObjectID: ref.Num, End: len(stamp), Context: contextSnippet(stamp, 0, len(stamp))},
					Confidence: 1.0,
					Metadata:   map[string]string{"field": key},
				}
			}
		}
	}
	if raw.IsMetadataStream(obj) {
		payload := obj.(raw.Stream).RawData()
		for i := range s.patterns {
			p := &s.patterns[i]
			if p.Kind != KindMetadata {
				continue
			}
			if start, end, ok := p.matchString(payload); ok {
				return &Match{
					PatternID:  p.ID,
					Kind:       KindMetadata,
					Location:   Location{ObjectID: ref.Num, Start: start, End: end, Context: contextSnippet(payload, start, end)},
					Confidence: 1.0,
				}
			}
		}
	}
	return nil
}

// detectApplicationTrace fires for any dictionary carrying a Producer
// or Creator string, regardless of whether the tool is recognized: the
// presence of the key is the trace. Fingerprint patterns only refine
// the match location and metadata.
func (s *Scanner) detectApplicationTrace(ref raw.ObjectRef, dict raw.Dictionary) *Match {
	for _, key := range []string{"Producer", "Creator"} {
		val, ok := raw.DictString(dict, key)
		if !ok || len(val) == 0 {
			continue
		}
		m := &Match{
			PatternID:  "producer-trace",
			Kind:       KindApplicationTrace,
			Location:   Location{ObjectID: ref.Num, End: len(val), Context: contextSnippet(val, 0, len(val))},
			Confidence: 1.0,
			Metadata:   map[string]string{"field": key, "application": string(val)},
		}
		for i := range s.patterns {
			p := &s.patterns[i]
			if p.Kind != KindApplicationTrace {
				continue
			}
			if start, end, ok := p.matchString(val); ok {
				m.Location.Start = start
				m.Location.End = end
				m.Location.Context = contextSnippet(val, start, end)
				m.Metadata["fingerprint"] = string(val[start:end])
				break
			}
		}
		return m
	}
	return nil
}

// matchPatterns runs byte patterns over stream payloads and regex
// patterns over dictionary strings and UTF-8 stream payloads. Trace
// kinds are excluded here: they only fire from their structural
// contexts so a Producer fingerprint in ordinary page text does not
// count as a trace.
func (s *Scanner) matchPatterns(ref raw.ObjectRef, obj raw.Object, dict raw.Dictionary) *Match {
	var fields []fieldString
	if dict != nil {
		fields = collectStrings(dict, "", s.config.MaxDepth)
	}
	for i := range s.patterns {
		p := &s.patterns[i]
		if p.Kind.isTraceKind() || !s.kindEnabled(p.Kind) {
			continue
		}
		if stream, ok := obj.(raw.Stream); ok {
			data := stream.RawData()
			if len(p.Bytes) > 0 {
				if start, end, ok := p.matchBytes(data); ok {
					return patternMatch(p, ref, data, start, end)
				}
			} else if p.re != nil && utf8.Valid(data) {
				if start, end, ok := p.matchString(data); ok {
					return patternMatch(p, ref, data, start, end)
				}
			}
		}
		if p.re == nil {
			continue
		}
		for _, fs := range fields {
			if start, end, ok := p.matchString(fs.value); ok {
				m := patternMatch(p, ref, fs.value, start, end)
				m.Metadata = map[string]string{"field": fs.field}
				return m
			}
		}
	}
	return nil
}

func (s *Scanner) kindEnabled(k Kind) bool {
	switch k {
	case KindEmbeddedFile:
		return s.config.ScanEmbeddedFiles
	case KindJavaScript:
		return s.config.ScanJavaScript
	case KindFormData:
		return s.config.ScanFormData
	case KindAnnotation:
		return s.config.ScanAnnotations
	case KindMetadata, KindApplicationTrace, KindSystemTrace, KindUserTrace:
		return s.config.ScanMetadata
	default:
		return true
	}
}

type fieldString struct {
	field string
	value []byte
}

// collectStrings gathers string values from a dictionary and its
// nested direct containers, depth-limited. References are not
// followed; the referenced object gets its own scan.
func collectStrings(obj raw.Object, path string, depth int) []fieldString {
	if depth <= 0 {
		return nil
	}
	var out []fieldString
	switch t := obj.(type) {
	case raw.Dictionary:
		keys := t.Keys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].Value() < keys[j].Value() })
		for _, k := range keys {
			v, _ := t.Get(k)
			sub := k.Value()
			if path != "" {
				sub = path + "." + sub
			}
			if str, ok := v.(raw.String); ok {
				out = append(out, fieldString{field: sub, value: str.Value()})
				continue
			}
			out = append(out, collectStrings(v, sub, depth-1)...)
		}
	case raw.Array:
		for i := 0; i < t.Len(); i++ {
			v, _ := t.Get(i)
			sub := path + "[" + strconv.Itoa(i) + "]"
			if str, ok := v.(raw.String); ok {
				out = append(out, fieldString{field: sub, value: str.Value()})
				continue
			}
			out = append(out, collectStrings(v, sub, depth-1)...)
		}
	}
	return out
}

func patternMatch(p *Pattern, ref raw.ObjectRef, data []byte, start, end int) *Match {
	m := &Match{
		PatternID:  p.ID,
		Kind:       p.Kind,
		Location:   Location{ObjectID: ref.Num, Start: start, End: end, Context: contextSnippet(data, start, end)},
		Confidence: 1.0,
	}
	if p.Kind == KindJavaScript {
		m.Analysis = assessJavaScript(string(data))
	}
	return m
}

// contextSnippet quotes the matched bytes plus up to 16 bytes either
// side, so reports stay readable even for binary payloads.
func contextSnippet(data []byte, start, end int) string {
	lo := start - 16
	if lo < 0 {
		lo = 0
	}
	hi := end + 16
	if hi > len(data) {
		hi = len(data)
	}
	return strconv.Quote(string(data[lo:hi]))
}

// SortedMatches flattens a registry into a slice ordered by object
// number, for rendering and stable comparison.
func SortedMatches(registry map[raw.ObjectRef]Match) []Match {
	refs := make([]raw.ObjectRef, 0, len(registry))
	for ref := range registry {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	out := make([]Match, 0, len(refs))
	for _, ref := range refs {
		out = append(out, registry[ref])
	}
	return out
}

// FilterMatches returns the matches at or above minConfidence.
func FilterMatches(matches []Match, minConfidence float64) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Confidence >= minConfidence {
			out = append(out, m)
		}
	}
	return out
}

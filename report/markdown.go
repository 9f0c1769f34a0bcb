// Package report renders sanitization results for humans. Markdown is
// the only format; it pastes cleanly into tickets and review notes.
package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/kartik4091/pdfsanitize/clean"
	"github.com/kartik4091/pdfsanitize/scan"
	"github.com/kartik4091/pdfsanitize/secure"
)

// Summary collects the per-stage outcomes of one sanitization run.
// Nil stage fields mean the stage did not run and are omitted from the
// report.
type Summary struct {
	RunID     string
	Generated time.Time
	Clean     *clean.Stats
	Scan      *scan.Result
	Secure    *secure.Stats
}

// MarkdownWriter renders a Summary as Markdown.
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a writer targeting output.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the summary and flushes it to the underlying writer.
func (w *MarkdownWriter) Write(s *Summary) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sanitization Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + s.RunID + "`"},
			{"Generated", s.Generated.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	if s.Clean != nil {
		writeCleanSection(md, s.Clean)
	}
	if s.Scan != nil {
		writeScanSection(md, s.Scan)
	}
	if s.Secure != nil {
		writeSecureSection(md, s.Secure)
	}

	return md.Build()
}

func writeCleanSection(md *markdown.Markdown, stats *clean.Stats) {
	md.H2("Resource Cleaning")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Resources Processed", strconv.Itoa(stats.ResourcesProcessed)},
			{"Resources Removed", strconv.Itoa(stats.ResourcesRemoved)},
			{"References Updated", strconv.Itoa(stats.ReferencesUpdated)},
			{"Dictionaries Pruned", strconv.Itoa(stats.DictionariesPruned)},
			{"Bytes Saved", strconv.FormatInt(stats.BytesSaved, 10)},
			{"Duration", stats.Duration.String()},
		},
	})
	md.PlainText("")
}

func writeScanSection(md *markdown.Markdown, result *scan.Result) {
	md.H2("Hidden Data Scan")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Objects Scanned", strconv.Itoa(result.Stats.ObjectsScanned)},
			{"Objects Skipped", strconv.Itoa(result.Stats.ObjectsSkipped)},
			{"Instances Found", strconv.Itoa(result.Stats.InstancesFound)},
			{"Patterns Matched", strconv.Itoa(result.Stats.PatternsMatched)},
			{"Duration", result.Stats.Duration.String()},
		},
	})
	md.PlainText("")

	if len(result.Matches) == 0 {
		md.PlainText("No hidden data found.")
		md.PlainText("")
		return
	}

	md.H3("Findings")
	rows := make([][]string, 0, len(result.Matches))
	for _, m := range scan.SortedMatches(result.Matches) {
		analysis := m.Analysis
		if analysis == "" {
			analysis = "-"
		}
		rows = append(rows, []string{
			m.PatternID,
			m.Kind.String(),
			strconv.Itoa(m.Location.ObjectID),
			m.Location.Context,
			analysis,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Pattern", "Kind", "Object", "Context", "Analysis"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeSecureSection(md *markdown.Markdown, stats *secure.Stats) {
	md.H2("Metadata Protection")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Fields Encrypted", strconv.Itoa(stats.FieldsEncrypted)},
			{"Fields Signed", strconv.Itoa(stats.FieldsSigned)},
			{"Verifications", strconv.Itoa(stats.VerificationsPerformed)},
			{"Crypto Failures", strconv.Itoa(stats.CryptoFailures)},
			{"Duration", stats.Duration.String()},
		},
	})
	md.PlainText("")
}

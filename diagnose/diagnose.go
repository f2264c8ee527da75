// Package diagnose analyzes a session's query log for pathological
// access patterns: repeated-shape (N+1) queries, excessive query
// counts, slow statements and high total time.
//
// The analysis is advisory. It derives findings from the log entries
// passively and never blocks or alters execution.
//
//	report := diagnose.New().Analyze(session.Log().Entries())
//	for _, f := range report.Findings {
//	    log.Printf("[%s] %s: %s", f.Severity, f.Message, f.Recommendation)
//	}
package diagnose

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/syssam/actum"
)

// Severity grades a finding.
type Severity string

// Severity levels, mildest first.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding kinds.
const (
	KindRepeatedPattern = "repeated_pattern"
	KindQueryCount      = "query_count"
	KindTotalTime       = "total_time"
	KindSlowQueries     = "slow_queries"
)

// Finding is one flagged observation with a human-readable
// recommendation.
type Finding struct {
	Kind           string
	Severity       Severity
	Message        string
	Recommendation string
}

// Report is the outcome of analyzing one profiling window.
type Report struct {
	QueryCount    int
	TotalDuration time.Duration
	// Patterns maps each normalized query shape to its occurrence
	// count within the window.
	Patterns map[string]int
	Findings []Finding
}

// HasFindings reports whether anything was flagged.
func (r *Report) HasFindings() bool { return len(r.Findings) > 0 }

// Analyzer holds the detection thresholds.
type Analyzer struct {
	// RepeatThreshold is the occurrence count a normalized shape must
	// exceed to be flagged as an N+1 signal.
	RepeatThreshold int
	// CountWarning/CountCritical grade the total query count.
	CountWarning  int
	CountCritical int
	// TimeWarning/TimeCritical grade the total elapsed time.
	TimeWarning  time.Duration
	TimeCritical time.Duration
	// SlowThreshold marks individual statements as slow.
	SlowThreshold time.Duration
}

// New returns an Analyzer with the default thresholds: a shape
// repeated more than 5 times signals N+1; more than 10 (20) queries is
// a warning (critical); more than 0.5s (1.0s) total time is a warning
// (critical); statements over 100ms count as slow.
func New() *Analyzer {
	return &Analyzer{
		RepeatThreshold: 5,
		CountWarning:    10,
		CountCritical:   20,
		TimeWarning:     500 * time.Millisecond,
		TimeCritical:    time.Second,
		SlowThreshold:   actum.DefaultSlowThreshold,
	}
}

var (
	quotedRe      = regexp.MustCompile(`'(?:[^']|'')*'`)
	inListRe      = regexp.MustCompile(`(?i)\bIN\s*\([^)]*\)`)
	placeholderRe = regexp.MustCompile(`\$\d+`)
	numberRe      = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

// Normalize reduces a SQL string to its shape: quoted literals,
// numeric literals, parameter placeholders and IN lists all collapse
// to ?, so queries differing only in values compare equal.
func Normalize(query string) string {
	query = quotedRe.ReplaceAllString(query, "?")
	query = inListRe.ReplaceAllString(query, "IN (?)")
	query = placeholderRe.ReplaceAllString(query, "?")
	query = numberRe.ReplaceAllString(query, "?")
	return query
}

// Analyze inspects one window of log entries and reports what it finds.
func (a *Analyzer) Analyze(entries []actum.LogEntry) *Report {
	report := &Report{
		QueryCount: len(entries),
		Patterns:   map[string]int{},
	}
	slow := 0
	for _, e := range entries {
		report.TotalDuration += e.Duration
		report.Patterns[Normalize(e.Query)]++
		if e.Duration > a.SlowThreshold {
			slow++
		}
	}
	a.checkRepeats(report)
	a.checkCount(report)
	a.checkTime(report)
	a.checkSlow(report, slow)
	return report
}

func (a *Analyzer) checkRepeats(report *Report) {
	// Stable output order for repeated shapes.
	shapes := make([]string, 0, len(report.Patterns))
	for shape := range report.Patterns {
		shapes = append(shapes, shape)
	}
	sort.Strings(shapes)
	for _, shape := range shapes {
		count := report.Patterns[shape]
		if count <= a.RepeatThreshold {
			continue
		}
		report.Findings = append(report.Findings, Finding{
			Kind:     KindRepeatedPattern,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("query pattern repeated %d times: %s", count, shape),
			Recommendation: "likely an N+1 access pattern; eager-load the relation " +
				"with Query.With or batch the lookups into one IN query",
		})
	}
}

func (a *Analyzer) checkCount(report *Report) {
	switch {
	case report.QueryCount > a.CountCritical:
		report.Findings = append(report.Findings, Finding{
			Kind:           KindQueryCount,
			Severity:       SeverityCritical,
			Message:        fmt.Sprintf("%d queries in one profiled unit", report.QueryCount),
			Recommendation: "reduce the number of round trips: combine lookups, eager-load relations, or cache repeated reads",
		})
	case report.QueryCount > a.CountWarning:
		report.Findings = append(report.Findings, Finding{
			Kind:           KindQueryCount,
			Severity:       SeverityWarning,
			Message:        fmt.Sprintf("%d queries in one profiled unit", report.QueryCount),
			Recommendation: "consider combining lookups or enabling the result cache",
		})
	}
}

func (a *Analyzer) checkTime(report *Report) {
	switch {
	case report.TotalDuration > a.TimeCritical:
		report.Findings = append(report.Findings, Finding{
			Kind:           KindTotalTime,
			Severity:       SeverityCritical,
			Message:        fmt.Sprintf("queries took %s in total", report.TotalDuration),
			Recommendation: "profile the slowest statements and add indexes or restructure the access pattern",
		})
	case report.TotalDuration > a.TimeWarning:
		report.Findings = append(report.Findings, Finding{
			Kind:           KindTotalTime,
			Severity:       SeverityWarning,
			Message:        fmt.Sprintf("queries took %s in total", report.TotalDuration),
			Recommendation: "review query plans for the most expensive statements",
		})
	}
}

func (a *Analyzer) checkSlow(report *Report, slow int) {
	if slow == 0 {
		return
	}
	report.Findings = append(report.Findings, Finding{
		Kind:           KindSlowQueries,
		Severity:       SeverityInfo,
		Message:        fmt.Sprintf("%d queries exceeded the %s slow threshold", slow, a.SlowThreshold),
		Recommendation: "inspect the slow entries in the query log for missing indexes",
	})
}

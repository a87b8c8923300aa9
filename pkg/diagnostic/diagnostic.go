// Package diagnostic turns parse warnings into editor diagnostics.
package diagnostic

import (
	"sort"

	"github.com/walteh/wxls/pkg/position"
	"github.com/walteh/wxls/pkg/project"
	"github.com/walteh/wxls/pkg/wxml"
	"github.com/walteh/wxls/pkg/wxss"
)

// Severity uses the numbering of the language server protocol.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	}
	return "unknown"
}

const Source = "wxls"

type Diagnostic struct {
	Message  string
	Range    position.Range
	Severity Severity
	Code     string
}

// ForDocument collects the diagnostics of a document, ordered by position.
func ForDocument(doc *project.Document) []Diagnostic {
	var out []Diagnostic
	switch {
	case doc.Template != nil:
		out = FromTemplate(doc.Template)
	case doc.Sheet != nil:
		out = FromStyleSheet(doc.Sheet)
	case doc.ManifestErr != nil:
		out = []Diagnostic{{
			Message:  doc.ManifestErr.Error(),
			Severity: SeverityError,
			Code:     "invalid-manifest",
		}}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out
}

func FromTemplate(t *wxml.Template) []Diagnostic {
	out := make([]Diagnostic, 0, len(t.Warnings))
	for _, w := range t.Warnings {
		msg := w.Kind.String()
		if w.Detail != "" {
			msg += ": " + w.Detail
		}
		out = append(out, Diagnostic{
			Message:  msg,
			Range:    w.Location,
			Severity: templateSeverity(w.Kind),
			Code:     "wxml",
		})
	}
	return out
}

func templateSeverity(k wxml.WarningKind) Severity {
	switch k {
	case wxml.WarnDuplicateAttribute, wxml.WarnMissingAttribute:
		return SeverityWarning
	}
	return SeverityError
}

func FromStyleSheet(s *wxss.StyleSheet) []Diagnostic {
	out := make([]Diagnostic, 0, len(s.Warnings))
	for _, w := range s.Warnings {
		out = append(out, Diagnostic{
			Message:  w.Kind.String(),
			Range:    w.Span.Location,
			Severity: styleSeverity(w.Kind),
			Code:     "wxss",
		})
	}
	return out
}

func styleSeverity(k wxss.WarningKind) Severity {
	switch k {
	case wxss.WarnInvalidSelector, wxss.WarnUnexpectedToken, wxss.WarnNestingTooDeep:
		return SeverityWarning
	}
	return SeverityError
}

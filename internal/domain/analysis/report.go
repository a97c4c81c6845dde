package analysis

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Markdown renders a standalone report for the record.
func (r *Record) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis: %s (%s)\n\n", r.StudentName, r.StudentID)
	fmt.Fprintf(&b, "- Subject: %s\n", r.Subject)
	fmt.Fprintf(&b, "- Percentage: %s%%\n", strconv.FormatFloat(r.Percentage, 'f', -1, 64))
	if topics := r.WeakTopicList(); len(topics) > 0 {
		fmt.Fprintf(&b, "- Topics Needing Improvement: %s\n", strings.Join(topics, ", "))
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated at: %s\n", r.CreatedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n## Analysis Conclusion\n\n")
	if strings.TrimSpace(r.Conclusion) == "" {
		b.WriteString("_Analysis pending._\n")
	} else {
		b.WriteString(strings.TrimSpace(r.Conclusion))
		b.WriteString("\n")
	}
	return b.String()
}

// ReportKey is the object key under which the record's report is archived.
// Both parts are path-escaped so a "/" in an ID stays inside one segment.
func (r *Record) ReportKey() string {
	return fmt.Sprintf("%s/%s.md", url.PathEscape(r.StudentID), url.PathEscape(r.ID))
}

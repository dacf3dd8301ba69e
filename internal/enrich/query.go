package enrich

import (
	"strconv"
	"strings"

	"honeytrail/pkg/models"
)

const (
	maxSummaryChars = 1200
	maxListItems    = 8
	maxItemChars    = 300

	emptyQuery = "Empty session summary"
)

// BuildQuery renders the search text for a record. Long summaries and
// indicator lists are cut so the text stays within embedding limits.
func BuildQuery(rec *models.AnalysisRecord) string {
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(truncate(rec.Summary, maxSummaryChars))
	if rec.AttackIntent != "" {
		add("Attack intent: " + truncate(rec.AttackIntent, maxItemChars))
	}

	ki := rec.KeyIndicators
	if ki.SrcIP != "" {
		add("Source IP: " + ki.SrcIP)
	}
	if ki.DestIP != "" {
		add("Destination IP: " + ki.DestIP)
	}
	if len(ki.SrcPorts) > 0 {
		add("Source ports: " + joinPorts(ki.SrcPorts))
	}
	if len(ki.DestPorts) > 0 {
		add("Destination ports: " + joinPorts(ki.DestPorts))
	}
	if len(ki.Protocols) > 0 {
		add("Protocols: " + strings.Join(capItems(ki.Protocols), ", "))
	}
	for _, c := range capItems(ki.Commands) {
		add("Command: " + c)
	}
	for _, u := range capItems(ki.URLs) {
		add("URL: " + u)
	}
	for _, s := range capItems(ki.Signatures) {
		add("Signature: " + s)
	}
	for _, f := range capItems(ki.Files) {
		add("File: " + f)
	}

	tr := rec.TimestampRange
	if tr.Start != "" || tr.End != "" {
		add("Time range: " + tr.Start + " -> " + tr.End)
	}

	if len(parts) == 0 {
		return emptyQuery
	}
	return strings.Join(parts, "\n")
}

func capItems(items []string) []string {
	n := len(items)
	if n > maxListItems {
		n = maxListItems
	}
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, truncate(item, maxItemChars))
	}
	return out
}

func joinPorts(ports models.PortList) string {
	n := len(ports)
	if n > maxListItems {
		n = maxListItems
	}
	var b []byte
	for i, p := range ports[:n] {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = strconv.AppendInt(b, int64(p), 10)
	}
	return string(b)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

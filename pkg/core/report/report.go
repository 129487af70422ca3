// Package report renders the active level of a segmentation engine as a
// Markdown table and, through goldmark, as HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"segmentation/pkg/core/segment"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// LevelReport is the data behind one rendered level.
type LevelReport struct {
	Title      string                `json:"title"`
	LevelName  string                `json:"level_name"`
	Measure    segment.Measure       `json:"measure"`
	Breadcrumb []string              `json:"breadcrumb"`
	Items      []segment.LevelItem   `json:"items"`
	Totals     segment.Node          `json:"totals"`
	Counts     map[segment.Trend]int `json:"counts"`
}

// FromEngine snapshots the engine's active level. levelName maps a 1-based
// level to its display name; nil uses "Level N".
func FromEngine(e *segment.Engine, title string, levelName func(int) string) LevelReport {
	if levelName == nil {
		levelName = func(l int) string { return fmt.Sprintf("Level %d", l) }
	}
	crumbs := make([]string, 0)
	for _, n := range e.Breadcrumb() {
		crumbs = append(crumbs, n.Name)
	}
	return LevelReport{
		Title:      title,
		LevelName:  levelName(e.ActiveLevel()),
		Measure:    e.PrimaryMeasure(),
		Breadcrumb: crumbs,
		Items:      e.GetChildrenOfActiveLevel(),
		Totals:     e.Totals(),
		Counts:     e.TrendCounts(),
	}
}

// RenderMarkdown renders the report as Markdown with a GFM table.
func RenderMarkdown(r LevelReport) string {
	var b strings.Builder

	title := r.Title
	if title == "" {
		title = "Segmentation"
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	trail := "All"
	if len(r.Breadcrumb) > 0 {
		parts := make([]string, 0, len(r.Breadcrumb)+1)
		parts = append(parts, "All")
		for _, c := range r.Breadcrumb {
			parts = append(parts, escape(c))
		}
		trail = strings.Join(parts, " › ")
	}
	fmt.Fprintf(&b, "**%s** · %s by %s\n\n", trail, escape(r.LevelName), r.Measure)

	if len(r.Items) == 0 {
		b.WriteString("_No sub-levels._\n")
		return b.String()
	}

	b.WriteString("| Name | Current | Comparison | Evolution | Trend | Margin rate | Share |\n")
	b.WriteString("|---|---:|---:|---:|---|---:|---:|\n")
	for _, it := range r.Items {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escape(it.Name),
			formatAmount(it.Value),
			formatAmount(it.SecondaryValue),
			formatPct(it.Metadata.EvolutionPct, true),
			it.Trend,
			formatPct(it.Metadata.MarginRatePct, false),
			formatPct(it.SharePct, false),
		)
	}

	fmt.Fprintf(&b, "\nTotal revenue %s vs %s (%s), margin rate %s.\n",
		formatAmount(r.Totals.CurrentValue()),
		formatAmount(r.Totals.ComparisonValue()),
		formatPct(segment.Round1(r.Totals.EvolutionPct), true),
		formatPct(segment.Round1(r.Totals.MarginRatePct), false),
	)

	if len(r.Counts) > 0 {
		parts := make([]string, 0, len(segment.Trends))
		for _, t := range segment.Trends {
			parts = append(parts, fmt.Sprintf("%s: %d", t, r.Counts[t]))
		}
		fmt.Fprintf(&b, "\n%s\n", strings.Join(parts, " · "))
	}
	return b.String()
}

// RenderHTML converts the Markdown rendering to an HTML fragment.
func RenderHTML(r LevelReport) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(r)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatPct(v float64, signed bool) string {
	if signed && v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

// escape keeps category names from breaking the table or emphasis.
func escape(s string) string {
	r := strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`")
	return r.Replace(s)
}

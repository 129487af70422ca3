package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"segmentation/pkg/core/config"
	"segmentation/pkg/core/ingest"
	"segmentation/pkg/core/report"
	"segmentation/pkg/core/segment"
	"segmentation/pkg/core/store"
	"segmentation/pkg/models"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/segmentation.yaml", "path to the YAML config")
	factsPath := flag.String("facts", "", "facts file (overrides the configured store)")
	depth := flag.Int("depth", 0, "hierarchy depth (0 uses the config)")
	measure := flag.String("measure", "", "primary measure: revenue, margin or quantity")
	sortMode := flag.String("sort", "", "level order: none, value_desc or evolution_desc")
	drill := flag.String("drill", "", "comma separated node ids to drill into, in order")
	format := flag.String("format", "md", "report format: md or html")
	from := flag.String("from", "", "current period start (YYYY-MM-DD), database stores only")
	to := flag.String("to", "", "current period end, exclusive (YYYY-MM-DD)")
	showReport := flag.Bool("rebuild-report", true, "print the rebuild report as JSON to stderr")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("Failed to load config", err)
	}
	if *depth > 0 {
		cfg.Hierarchy.Depth = *depth
	}
	if *measure != "" {
		cfg.View.DefaultMeasure = *measure
	}
	if *sortMode != "" {
		cfg.View.Sort = *sortMode
	}
	if *factsPath != "" {
		cfg.Store.Driver = "file"
		cfg.Store.FactsFile = *factsPath
	}

	opts := cfg.EngineOptions()
	if _, err := segment.ParseMeasure(cfg.View.DefaultMeasure); err != nil {
		fail("Invalid -measure", err)
	}
	if _, err := segment.ParseSortMode(cfg.View.Sort); err != nil {
		fail("Invalid -sort", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	scope, err := buildScope(*from, *to)
	if err != nil {
		fail("Invalid scope", err)
	}

	var provider store.FactProvider
	if cfg.Store.Driver == "file" || cfg.Store.Driver == "" {
		provider = ingest.NewFileProvider(cfg.Store.FactsFile)
	} else {
		p, closeStore, err := store.Open(ctx, cfg.Store)
		if err != nil {
			fail("Failed to open fact store", err)
		}
		defer closeStore()
		provider = p
	}

	facts, err := provider.LoadFacts(ctx, scope)
	if err != nil {
		fail("Failed to load facts", err)
	}

	engine := segment.New(opts)
	rep := engine.Rebuild(facts, cfg.Hierarchy.Depth)
	if *showReport {
		data, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Fprintf(os.Stderr, "%s\n", data)
	}

	for _, id := range splitList(*drill) {
		if !engine.DrillInto(id) {
			fmt.Fprintf(os.Stderr, "[SEGMENT] Cannot drill into %q: unknown node or leaf\n", id)
		}
	}

	lr := report.FromEngine(engine, "Segmentation", cfg.LevelName)
	switch *format {
	case "md", "markdown":
		fmt.Print(report.RenderMarkdown(lr))
	case "html":
		html, err := report.RenderHTML(lr)
		if err != nil {
			fail("Failed to render HTML", err)
		}
		fmt.Print(html)
	default:
		fail("Invalid -format", fmt.Errorf("unknown format %q", *format))
	}
}

// buildScope returns a year-over-year scope, or the zero scope when no
// bounds are given (file providers ignore it).
func buildScope(from, to string) (models.Scope, error) {
	if from == "" && to == "" {
		return models.Scope{}, nil
	}
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return models.Scope{}, fmt.Errorf("-from: %w", err)
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return models.Scope{}, fmt.Errorf("-to: %w", err)
	}
	scope := models.YearOverYear(start, end)
	return scope, scope.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "[FATAL] %s: %v\n", msg, err)
	os.Exit(1)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/app"
	"github.com/joseph-ayodele/form16-extractor/internal/async"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/ingest"
	"github.com/joseph-ayodele/form16-extractor/internal/journal"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/logging"
)

const usage = `usage:
  form16ctl extract [-concurrency N] [-json] [-hidden] <file|dir>...
  form16ctl watch   [-concurrency N] [-debounce D] [-timeout D] [-initial] <dir>...
  form16ctl export  [-out journal.xlsx] [-from YYYY-MM-DD] [-to YYYY-MM-DD]
  form16ctl text    [-prompt] <file>
  form16ctl health  [-timeout D]
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printError(usage)
		return 2
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("load config: %v\n", err)
		return 1
	}
	// CLI output is the results; logs stay quiet unless asked for.
	level := cfg.Log.Level
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, err := logging.New(level)
	if err != nil {
		printError("init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "extract":
		return runExtract(ctx, cfg, logger, os.Args[2:])
	case "watch":
		return runWatch(ctx, cfg, logger, os.Args[2:])
	case "export":
		return runExport(ctx, cfg, logger, os.Args[2:])
	case "text":
		return runText(ctx, cfg, logger, os.Args[2:])
	case "health":
		return runHealth(ctx, cfg, logger, os.Args[2:])
	default:
		printError(usage)
		return 2
	}
}

func build(ctx context.Context, cfg *common.Config, logger *zap.Logger) (*app.App, bool) {
	if err := cfg.Validate(); err != nil {
		printError("invalid configuration: %v\n", err)
		return nil, false
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		printError("build components: %v\n", err)
		return nil, false
	}
	return a, true
}

func runExtract(ctx context.Context, cfg *common.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	concurrency := fs.Int("concurrency", 2, "files processed in parallel")
	asJSON := fs.Bool("json", false, "print one JSON object per file")
	hidden := fs.Bool("hidden", false, "include hidden files and directories")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		printError("Error: at least one file or directory is required\n")
		return 2
	}

	files, stats, err := ingest.Collect(fs.Args(), !*hidden)
	if err != nil {
		printError("warning: %v\n", err)
	}
	if len(files) == 0 {
		printError("no supported files found (scanned %d)\n", stats.Scanned)
		return 1
	}

	a, ok := build(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer func() { _ = a.Close() }()

	results, err := (&ingest.Batch{Proc: a.Processor, Concurrency: *concurrency, Logger: logger}).Run(ctx, files)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
		printResult(r, *asJSON)
	}
	if err != nil {
		printError("interrupted: %v\n", err)
		return 1
	}
	if !*asJSON {
		summary := color.New(color.Bold)
		summary.Printf("\n%d file(s), %d ok, %d failed\n", len(results), len(results)-failed, failed)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func runWatch(ctx context.Context, cfg *common.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	concurrency := fs.Int("concurrency", 2, "files processed in parallel")
	debounce := fs.Duration("debounce", 750*time.Millisecond, "wait this long after the last write before processing")
	initial := fs.Bool("initial", false, "process files already present")
	timeout := fs.Duration("timeout", 3*time.Minute, "per-file processing timeout")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		printError("Error: at least one directory is required\n")
		return 2
	}

	a, ok := build(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer func() { _ = a.Close() }()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       fs.Args(),
		InitialScan: *initial,
		Debounce:    *debounce,
		Logger:      logger,
	})
	if err != nil {
		printError("start watcher: %v\n", err)
		return 1
	}
	color.New(color.FgCyan).Printf("watching %v (ctrl-c to stop)\n", fs.Args())

	batch := &ingest.Batch{Proc: a.Processor, Concurrency: 1, Logger: logger}
	var printMu sync.Mutex
	q := async.NewProcessorQueue(func(jctx context.Context, job async.Job) {
		results, _ := batch.Run(jctx, []string{job.Path})
		printMu.Lock()
		defer printMu.Unlock()
		for _, r := range results {
			printResult(r, false)
		}
	}, logger, async.WithWorkers(*concurrency), async.WithProcessTimeout(*timeout))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		q.Shutdown(drainCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			return 0
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			printError("watch: %v\n", err)
		case path, ok := <-events:
			if !ok {
				return 0
			}
			if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
				printError("enqueue %s: %v\n", path, err)
			}
		}
	}
}

func runExport(ctx context.Context, cfg *common.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "journal.xlsx", "output XLSX file path")
	fromStr := fs.String("from", "", "from date YYYY-MM-DD")
	toStr := fs.String("to", "", "to date YYYY-MM-DD")
	_ = fs.Parse(args)

	if cfg.Journal.Driver == "" || cfg.Journal.Driver == "none" {
		printError("Error: export needs JOURNAL_DRIVER=sqlite|postgres\n")
		return 2
	}

	var from, to *time.Time
	for _, p := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{{"from", *fromStr, &from}, {"to", *toStr, &to}} {
		if p.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, p.raw)
		if err != nil {
			printError("Error: invalid -%s date format, use YYYY-MM-DD: %v\n", p.name, err)
			return 2
		}
		*p.dst = &t
	}

	a, ok := build(ctx, cfg, logger)
	if !ok {
		return 1
	}
	defer func() { _ = a.Close() }()

	xlsx, err := a.Exporter.JournalXLSX(ctx, from, to)
	if err != nil {
		printError("export: %v\n", err)
		return 1
	}
	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			printError("create %s: %v\n", dir, err)
			return 1
		}
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		printError("write %s: %v\n", *out, err)
		return 1
	}
	color.Green("wrote %s (%d bytes)", *out, len(xlsx))
	return 0
}

// runText runs stage 1 only and prints what the model would receive.
func runText(ctx context.Context, cfg *common.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	showPrompt := fs.Bool("prompt", false, "also print the system prompt")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		printError("Error: exactly one file is required\n")
		return 2
	}
	path := fs.Arg(0)

	kind := constants.MapExtToKind(filepath.Ext(path))
	if kind == "" {
		printError("Error: unsupported file type: %s\n", path)
		return 2
	}
	content, err := os.ReadFile(path)
	if err != nil {
		printError("read %s: %v\n", path, err)
		return 1
	}

	stage, err := app.NewExtractStage(cfg.OCR, logger)
	if err != nil {
		printError("build extractor: %v\n", err)
		return 1
	}
	in, err := stage.Run(common.WithRequestID(ctx, "text:"+filepath.Base(path)), kind, content, ingest.MIMEFromPath(path))
	if err != nil {
		printError("extract %s: [%s] %v\n", path, common.ErrorCode(err), err)
		return 1
	}

	if *showPrompt {
		color.New(color.Faint).Println(llm.SystemPromptFor(kind))
		fmt.Println()
	}
	if in.Kind == constants.IMAGE {
		fmt.Printf("%s image, %d base64 chars\n", in.MIMEType, len(in.ImageBase64))
		return 0
	}
	fmt.Println(in.Text)
	return 0
}

// runHealth probes the configured journal and reports its recent activity.
func runHealth(ctx context.Context, cfg *common.Config, logger *zap.Logger, args []string) int {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	timeout := fs.Duration("timeout", time.Second, "ping timeout")
	_ = fs.Parse(args)

	jr, err := journal.Open(ctx, journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN}, logger)
	if err != nil {
		color.Red("journal (%s): FAIL (%v)", cfg.Journal.Driver, err)
		return 1
	}
	defer func() { _ = jr.Close() }()

	if err := jr.HealthCheck(ctx, *timeout); err != nil {
		color.Red("journal (%s): FAIL (%v)", cfg.Journal.Driver, err)
		return 1
	}
	color.Green("journal (%s): OK", cfg.Journal.Driver)

	recent, err := jr.List(ctx, journal.Filter{Limit: 5})
	if err != nil {
		printError("list jobs: %v\n", err)
		return 1
	}
	for _, e := range recent {
		fmt.Printf("  %s  %-5s %-14s %-16s %s\n", e.StartedAt.Format(time.DateTime), e.Kind, e.Status, e.ErrorCode, e.Filename)
	}
	return 0
}

func printResult(r ingest.FileResult, asJSON bool) {
	if asJSON {
		rec := map[string]any{"path": r.Path, "elapsed_ms": r.Elapsed.Milliseconds()}
		if r.Err != nil {
			rec["error"] = r.Err.Error()
			rec["code"] = common.ErrorCode(r.Err)
		} else {
			rec["fields"] = r.Fields
		}
		b, _ := json.Marshal(rec)
		fmt.Println(string(b))
		return
	}

	if r.Err != nil {
		color.Red("✗ %s  [%s] %v", r.Path, common.ErrorCode(r.Err), r.Err)
		return
	}
	color.Green("✓ %s  (%s)", r.Path, r.Elapsed.Round(time.Millisecond))
	label := color.New(color.Faint).SprintFunc()
	fmt.Printf("    %s %s\n", label("Assessment year:"), r.Fields.AssessmentYear)
	fmt.Printf("    %s %s\n", label("Employer name:  "), r.Fields.EmployerName)
	fmt.Printf("    %s %s\n", label("Deductor TAN:   "), r.Fields.DeductorTAN)
	fmt.Printf("    %s %s\n", label("Employee name:  "), r.Fields.EmployeeName)
	fmt.Printf("    %s %s\n", label("Employee PAN:   "), r.Fields.EmployeePAN)
}

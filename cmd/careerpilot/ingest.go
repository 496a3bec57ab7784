package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/wordflowlab/careerpilot/pkg/appconfig"
	"github.com/wordflowlab/careerpilot/pkg/ingest"
	"github.com/wordflowlab/careerpilot/pkg/loader"
	"github.com/wordflowlab/careerpilot/pkg/logging"
)

// loadConfig dry-run 时不要求外部服务的密钥
func loadConfig(path string, dryRun bool) (*appconfig.Config, error) {
	if !dryRun {
		return appconfig.FromEnvironment(path)
	}
	if path == "" {
		path = os.Getenv(appconfig.EnvConfigPath)
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// runIngestCourses 导入课程数据集到 datasource 索引
func runIngestCourses(args []string) error {
	fs := flag.NewFlagSet("ingest-courses", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config file (defaults to $CAREERPILOT_CONFIG)")
	dryRun := fs.Bool("dry-run", false, "Chunk and embed locally into an in-memory store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one file or glob pattern is required")
	}

	cfg, err := loadConfig(*configPath, *dryRun)
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, buildOptions{DryRun: *dryRun})
	if err != nil {
		return err
	}
	defer a.close()

	files, err := expandPatterns(fs.Args(), a.loader)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no course files matched")
	}

	p, err := a.coursePipeline()
	if err != nil {
		return err
	}
	sum, err := ingestFiles(ctx, p, files, a.logger)
	fmt.Printf("ingested %d/%d files, %d chunks, %d records upserted\n", sum.Succeeded, sum.Files, sum.Chunks, sum.Upserted)
	return err
}

// expandPatterns 展开 glob(支持 **)。
// 通配符匹配到的文件只保留支持的类型; 不含通配符的参数原样保留, 交给 loader 报错。
func expandPatterns(patterns []string, l *loader.Loader) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if l.Supports(m) {
				add(m)
			}
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	for _, r := range p {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

type ingestSummary struct {
	Files     int
	Succeeded int
	Chunks    int
	Upserted  int
}

// ingestFiles 逐个文件导入。单个文件失败不影响其他文件, 所有错误合并返回。
func ingestFiles(ctx context.Context, p *ingest.Pipeline, files []string, logger *logging.Logger) (ingestSummary, error) {
	sum := ingestSummary{Files: len(files)}
	var errs []error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := p.IngestFile(ctx, f)
		if res != nil {
			sum.Chunks += res.Chunks
			sum.Upserted += res.Upsert.Upserted
		}
		if err != nil {
			logger.Error(ctx, "courses.ingest_failed", map[string]interface{}{"path": f, "error": err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		sum.Succeeded++
		logger.Info(ctx, "courses.ingested", map[string]interface{}{
			"path":     f,
			"chunks":   res.Chunks,
			"upserted": res.Upsert.Upserted,
		})
	}
	return sum, errors.Join(errs...)
}

// runWatchCourses 监听目录, 新增或更新的课程文件稳定后自动导入
func runWatchCourses(args []string) error {
	fs := flag.NewFlagSet("watch-courses", flag.ExitOnError)
	configPath := fs.String("config", "", "Optional YAML config file (defaults to $CAREERPILOT_CONFIG)")
	dryRun := fs.Bool("dry-run", false, "Chunk and embed locally into an in-memory store")
	debounce := fs.Duration("debounce", 2*time.Second, "Quiet period before a changed file is ingested")
	existing := fs.Bool("existing", false, "Ingest files already present in the directory at startup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one directory is required")
	}
	if *debounce < 100*time.Millisecond {
		*debounce = 100 * time.Millisecond
	}
	dir := fs.Arg(0)

	cfg, err := loadConfig(*configPath, *dryRun)
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, buildOptions{DryRun: *dryRun})
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.coursePipeline()
	if err != nil {
		return err
	}

	if *existing {
		files, err := expandPatterns([]string{filepath.Join(dir, "**", "*")}, a.loader)
		if err != nil {
			return err
		}
		if _, err := ingestFiles(ctx, p, files, a.logger); err != nil {
			a.logger.Warn(ctx, "courses.initial_ingest_incomplete", map[string]interface{}{"error": err.Error()})
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	a.logger.Info(ctx, "courses.watching", map[string]interface{}{"dir": dir})

	q := newDebounceQueue(*debounce, a.loader.Supports)
	ticker := time.NewTicker(*debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			q.observe(ev, time.Now())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn(ctx, "courses.watch_error", map[string]interface{}{"error": err.Error()})
		case now := <-ticker.C:
			if ready := q.ready(now); len(ready) > 0 {
				_, _ = ingestFiles(ctx, p, ready, a.logger)
			}
		}
	}
}

// debounceQueue 合并同一文件的连续写事件, 静默 quiet 之后才交付
type debounceQueue struct {
	quiet    time.Duration
	accept   func(path string) bool
	lastSeen map[string]time.Time
}

func newDebounceQueue(quiet time.Duration, accept func(string) bool) *debounceQueue {
	return &debounceQueue{quiet: quiet, accept: accept, lastSeen: make(map[string]time.Time)}
}

func (q *debounceQueue) observe(ev fsnotify.Event, now time.Time) {
	if !q.accept(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		q.lastSeen[ev.Name] = now
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(q.lastSeen, ev.Name)
	}
}

func (q *debounceQueue) ready(now time.Time) []string {
	var out []string
	for path, seen := range q.lastSeen {
		if now.Sub(seen) >= q.quiet {
			out = append(out, path)
			delete(q.lastSeen, path)
		}
	}
	sort.Strings(out)
	return out
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/rapor/internal/export"
)

// Item statuses in a batch report.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// BatchConfig configures a Batch.
type BatchConfig struct {
	Pipeline *Pipeline
	Exporter *export.Exporter
	InputDir string

	// ContinueOnError isolates failures per document. When false the run
	// stops at the first failed document.
	ContinueOnError bool

	// PageResults also saves every page under its image name.
	PageResults bool

	Logger *slog.Logger
}

// Item is the batch outcome for one directory entry.
type Item struct {
	Name     string          `json:"name"`
	Status   string          `json:"status"`
	Pages    int             `json:"pages,omitempty"`
	Found    int             `json:"found,omitempty"`
	Written  *export.Written `json:"written,omitempty"`
	Error    *DocumentError  `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Report summarizes a batch run.
type Report struct {
	RunID     string    `json:"run_id"`
	InputDir  string    `json:"input_dir"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Items     []Item    `json:"items"`
}

// Batch processes every supported document in a folder.
type Batch struct {
	pipeline        *Pipeline
	exporter        *export.Exporter
	inputDir        string
	continueOnError bool
	pageResults     bool
	logger          *slog.Logger
}

// NewBatch creates a Batch.
func NewBatch(cfg BatchConfig) (*Batch, error) {
	if cfg.Pipeline == nil || cfg.Exporter == nil {
		return nil, fmt.Errorf("batch requires a pipeline and an exporter")
	}
	if cfg.InputDir == "" {
		return nil, fmt.Errorf("batch requires an input directory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Batch{
		pipeline:        cfg.Pipeline,
		exporter:        cfg.Exporter,
		inputDir:        cfg.InputDir,
		continueOnError: cfg.ContinueOnError,
		pageResults:     cfg.PageResults,
		logger:          cfg.Logger,
	}, nil
}

// InputDir returns the folder scanned by Run.
func (b *Batch) InputDir() string { return b.inputDir }

// Run processes the input folder in directory-listing order.
// With ContinueOnError the returned error is nil even when items failed;
// check Report.Failed. Cancellation stops the run between documents.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:    uuid.New().String(),
		InputDir: b.inputDir,
		Started:  time.Now().UTC(),
	}
	log := b.logger.With("run_id", rep.RunID)

	entries, err := os.ReadDir(b.inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	log.Info("batch started", "input", b.inputDir, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			rep.Finished = time.Now().UTC()
			return rep, err
		}

		path := filepath.Join(b.inputDir, entry.Name())
		if !entry.Type().IsRegular() || !Supported(path) {
			log.Info("skipping", "name", entry.Name())
			rep.Skipped++
			rep.Items = append(rep.Items, Item{Name: entry.Name(), Status: StatusSkipped})
			continue
		}

		item := b.processItem(ctx, path)
		rep.Items = append(rep.Items, item)
		if item.Status == StatusFailed {
			rep.Failed++
			if IsCancelled(item.Error.Err) {
				rep.Finished = time.Now().UTC()
				return rep, item.Error.Err
			}
			if !b.continueOnError {
				rep.Finished = time.Now().UTC()
				return rep, item.Error
			}
			continue
		}
		rep.Processed++
	}

	rep.Finished = time.Now().UTC()
	log.Info("batch finished",
		"processed", rep.Processed,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		"took", rep.Finished.Sub(rep.Started).Round(time.Millisecond))
	return rep, nil
}

func (b *Batch) processItem(ctx context.Context, path string) Item {
	start := time.Now()
	item := Item{Name: filepath.Base(path)}

	res, written, err := b.ProcessFile(ctx, path)
	item.Duration = time.Since(start)
	if err != nil {
		de, ok := AsDocumentError(err)
		if !ok {
			de = newError(KindRecognition, filepath.Base(path), "", err)
		}
		item.Status = StatusFailed
		item.Error = de
		b.logger.Error("document failed", "name", item.Name, "kind", de.Kind, "error", err)
		return item
	}

	item.Status = StatusProcessed
	item.Pages = len(res.Pages)
	item.Found = res.Scores.FoundCount()
	item.Written = written
	return item
}

// ProcessFile runs the pipeline on one document and saves its results.
// A panic while processing is converted into a recognition_failed error.
func (b *Batch) ProcessFile(ctx context.Context, path string) (res *Result, written *export.Written, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while processing document", "path", path, "panic", r, "stack", string(debug.Stack()))
			res, written = nil, nil
			err = newError(KindRecognition, filepath.Base(path), fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	res, err = b.pipeline.Process(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	written, err = b.exporter.Save(ctx, res.Document, res.Text, res.Scores)
	if err != nil {
		return nil, nil, newError(KindExport, res.Document, "", err)
	}

	if b.pageResults && len(res.Pages) > 1 {
		for _, pg := range res.Pages {
			name := fmt.Sprintf("%s_page_%d", res.Document, pg.Index)
			if pg.ImagePath != "" {
				name = strings.TrimSuffix(filepath.Base(pg.ImagePath), filepath.Ext(pg.ImagePath))
			}
			if _, err := b.exporter.Save(ctx, name, pg.Text, pg.Scores); err != nil {
				return nil, nil, newError(KindExport, res.Document, fmt.Sprintf("page %d", pg.Index), err)
			}
		}
	}

	return res, written, nil
}

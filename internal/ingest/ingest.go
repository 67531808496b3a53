// Package ingest runs the indexing pipeline: discover document files,
// parse them into text, split the text into passages, embed the
// passages, and commit the results to the stores.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rigdocs/rigqa/internal/chunk"
	"github.com/rigdocs/rigqa/internal/embed"
	rqerrors "github.com/rigdocs/rigqa/internal/errors"
	"github.com/rigdocs/rigqa/internal/parse"
	"github.com/rigdocs/rigqa/internal/store"
	"github.com/rigdocs/rigqa/internal/ui"
)

const (
	// defaultBatchSize is how many passages go to the embedder per call.
	defaultBatchSize = 32

	// defaultWorkers bounds how many documents embed concurrently.
	defaultWorkers = 4
)

// Options tunes an ingestion run. The zero value takes defaults.
type Options struct {
	// BatchSize is the number of passages per embedding request.
	BatchSize int

	// Workers is the number of documents embedded concurrently.
	// Store commits are serialized regardless.
	Workers int
}

// FileError records one file the pipeline skipped.
type FileError struct {
	// Path is the file that failed.
	Path string

	// Err is what went wrong.
	Err error
}

// Report contains the outcome of an ingestion run.
type Report struct {
	// Documents is the number of documents committed to the index.
	Documents int

	// Chunks is the number of passages embedded and indexed.
	Chunks int

	// Duration is the total pipeline time including discovery.
	Duration time.Duration

	// Errors lists files that were skipped. The run continues past
	// them; only store and embedder failures abort it.
	Errors []FileError
}

// Dependencies contains the injected collaborators for an Ingestor.
type Dependencies struct {
	// Renderer for progress display (required).
	Renderer ui.Renderer

	// Parser extracts text from document files (required).
	Parser *parse.Parser

	// Chunker splits document text into passages (required).
	Chunker chunk.Chunker

	// Embedder generates passage vectors (required).
	Embedder embed.Embedder

	// Store owns the chunk, vector, and keyword stores (required).
	Store *store.Manager
}

// Ingestor executes ingestion runs with progress reporting. It accepts
// injected dependencies for testability and reuse by watch mode.
type Ingestor struct {
	renderer  ui.Renderer
	parser    *parse.Parser
	chunker   chunk.Chunker
	embedder  embed.Embedder
	store     *store.Manager
	batchSize int
	workers   int
}

// New creates an Ingestor with injected dependencies.
func New(deps Dependencies, opts Options) (*Ingestor, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if deps.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store manager is required")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Ingestor{
		renderer:  deps.Renderer,
		parser:    deps.Parser,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		store:     deps.Store,
		batchSize: batchSize,
		workers:   workers,
	}, nil
}

// Discover walks roots in order and returns every supported document
// file, lexically ordered within each root. Dotfiles and dot-directories
// are skipped. A root that is itself a file is returned as given, so the
// pipeline reports a per-file error for unsupported formats instead of
// silently dropping an explicit argument.
func Discover(roots ...string) ([]string, error) {
	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
		if !info.IsDir() {
			paths = append(paths, root)
			continue
		}

		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			if !parse.Supported(path) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, walkErr)
		}
	}
	return paths, nil
}

// stageTiming tracks duration for each ingestion stage.
type stageTiming struct {
	scan  time.Duration
	parse time.Duration
	chunk time.Duration
	embed time.Duration
	index time.Duration
}

// IngestDir discovers supported files under dir and ingests them.
func (ing *Ingestor) IngestDir(ctx context.Context, dir string) (*Report, error) {
	scanStart := time.Now()
	ing.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s...", dir),
	})
	slog.Info("ingest_scan_started", slog.String("path", dir))

	paths, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	slog.Info("ingest_scan_complete", slog.Int("files", len(paths)))

	return ing.run(ctx, paths, time.Since(scanStart))
}

// IngestFiles ingests the given files without a discovery pass. Watch
// mode uses it to re-index documents that changed on disk.
func (ing *Ingestor) IngestFiles(ctx context.Context, paths []string) (*Report, error) {
	return ing.run(ctx, paths, 0)
}

// run executes the parse, chunk, embed, and index stages.
func (ing *Ingestor) run(ctx context.Context, paths []string, scanTime time.Duration) (*Report, error) {
	startTime := time.Now()
	timing := stageTiming{scan: scanTime}
	report := &Report{}

	if len(paths) == 0 {
		report.Duration = scanTime + time.Since(startTime)
		return report, nil
	}

	// Stage: parse files into documents
	parseStart := time.Now()
	docs := ing.parseFiles(ctx, paths, report)
	timing.parse = time.Since(parseStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		report.Duration = scanTime + time.Since(startTime)
		return report, nil
	}

	// Stage: split documents into passages
	chunkStart := time.Now()
	docChunks, totalChunks := ing.chunkDocuments(docs)
	timing.chunk = time.Since(chunkStart)

	if totalChunks == 0 {
		report.Duration = scanTime + time.Since(startTime)
		return report, nil
	}

	// Stage: embed passages and commit each document to the stores
	embedStart := time.Now()
	if err := ing.embedAndCommit(ctx, docs, docChunks, totalChunks); err != nil {
		return nil, err
	}
	timing.embed = time.Since(embedStart)

	// Stage: persist the vector index
	indexStart := time.Now()
	ing.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: "Writing search indices...",
	})
	if err := ing.store.SaveVectors(); err != nil {
		return nil, err
	}
	timing.index = time.Since(indexStart)

	for _, chunks := range docChunks {
		if len(chunks) == 0 {
			continue
		}
		report.Documents++
		report.Chunks += len(chunks)
	}
	report.Duration = scanTime + time.Since(startTime)

	info := embed.GetInfo(ctx, ing.embedder)
	ing.renderer.Complete(ui.CompletionStats{
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Duration:  report.Duration,
		Warnings:  len(report.Errors),
		Stages: ui.StageTimings{
			Scan:  timing.scan,
			Parse: timing.parse,
			Chunk: timing.chunk,
			Embed: timing.embed,
			Index: timing.index,
		},
		Embedder: ui.EmbedderInfo{
			Backend:    string(info.Provider),
			Model:      info.Model,
			Dimensions: info.Dimensions,
		},
	})

	chunksPerSec := 0.0
	if timing.embed.Seconds() > 0 {
		chunksPerSec = float64(report.Chunks) / timing.embed.Seconds()
	}
	slog.Info("ingest_complete",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("skipped_files", len(report.Errors)),
		slog.Int64("duration_total_ms", report.Duration.Milliseconds()),
		slog.Int64("duration_scan_ms", timing.scan.Milliseconds()),
		slog.Int64("duration_parse_ms", timing.parse.Milliseconds()),
		slog.Int64("duration_chunk_ms", timing.chunk.Milliseconds()),
		slog.Int64("duration_embed_ms", timing.embed.Milliseconds()),
		slog.Int64("duration_index_ms", timing.index.Milliseconds()),
		slog.String("embedder_backend", string(info.Provider)),
		slog.String("embedder_model", info.Model),
		slog.Int("embedder_dimensions", info.Dimensions),
		slog.Float64("chunks_per_sec", chunksPerSec))

	return report, nil
}

// parseFiles extracts text from each file. Files that fail to parse are
// recorded on the report and skipped.
func (ing *Ingestor) parseFiles(ctx context.Context, paths []string, report *Report) []parse.Document {
	total := len(paths)
	ing.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageParsing,
		Total: total,
	})

	docs := make([]parse.Document, 0, total)
	for i, path := range paths {
		if ctx.Err() != nil {
			return docs
		}

		ing.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageParsing,
			Current:     i + 1,
			Total:       total,
			CurrentFile: path,
		})

		doc, err := ing.parser.ParseFile(ctx, path)
		if err != nil {
			report.Errors = append(report.Errors, FileError{Path: path, Err: err})
			ing.renderer.AddError(ui.ErrorEvent{
				File:   path,
				Err:    err,
				IsWarn: true,
			})
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// chunkDocuments splits each document into passages and builds the rows
// the stores persist. A later file with the same name replaces an
// earlier one at commit time, so duplicates cost work but not
// correctness.
func (ing *Ingestor) chunkDocuments(docs []parse.Document) ([][]*store.Chunk, int) {
	total := len(docs)
	ing.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageChunking,
		Total: total,
	})

	docChunks := make([][]*store.Chunk, len(docs))
	totalChunks := 0
	for i, doc := range docs {
		ing.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageChunking,
			Current:     i + 1,
			Total:       total,
			CurrentFile: doc.Name,
		})

		passages := ing.chunker.Chunk(doc.Content)
		chunks := make([]*store.Chunk, len(passages))
		for ord, p := range passages {
			chunks[ord] = &store.Chunk{
				ID:          store.ChunkID(doc.Name, ord),
				DocumentID:  doc.Name,
				Ordinal:     ord,
				Content:     p.Text,
				DateContext: p.DateContext,
			}
		}
		docChunks[i] = chunks
		totalChunks += len(chunks)
	}

	slog.Info("ingest_chunking_complete",
		slog.Int("chunks", totalChunks),
		slog.Int("documents", len(docs)))
	return docChunks, totalChunks
}

// embedAndCommit embeds every document's passages and commits them to
// the stores. Documents are spread over a bounded worker pool; each
// document's commit is one critical section, so its chunk rows land
// before the vector and keyword entries that reference them.
func (ing *Ingestor) embedAndCommit(ctx context.Context, docs []parse.Document, docChunks [][]*store.Chunk, totalChunks int) error {
	ing.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageEmbedding,
		Total: totalChunks,
	})

	var (
		embedded atomic.Int64
		commitMu sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)

	for i := range docs {
		if len(docChunks[i]) == 0 {
			continue
		}
		name := docs[i].Name
		chunks := docChunks[i]

		g.Go(func() error {
			if err := ing.embedDocument(gctx, name, chunks, totalChunks, &embedded); err != nil {
				return err
			}

			ids := make([]string, len(chunks))
			vectors := make([][]float32, len(chunks))
			for j, c := range chunks {
				ids[j] = c.ID
				vectors[j] = c.Embedding
			}

			commitMu.Lock()
			defer commitMu.Unlock()
			if err := ing.store.Chunks.SaveChunks(gctx, name, chunks); err != nil {
				return fmt.Errorf("failed to save chunks for %s: %w", name, err)
			}
			if err := ing.store.Vectors.Add(gctx, ids, vectors); err != nil {
				return fmt.Errorf("failed to add vectors for %s: %w", name, err)
			}
			if err := ing.store.Keywords.Index(gctx, chunks); err != nil {
				return fmt.Errorf("failed to index keywords for %s: %w", name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// embedDocument embeds one document's passages in batches, storing each
// vector on its chunk.
func (ing *Ingestor) embedDocument(ctx context.Context, name string, chunks []*store.Chunk, totalChunks int, embedded *atomic.Int64) error {
	for batchStart := 0; batchStart < len(chunks); batchStart += ing.batchSize {
		select {
		case <-ctx.Done():
			done := int(embedded.Load())
			slog.Info("ingest_interrupted",
				slog.Int("embedded", done),
				slog.Int("total", totalChunks))
			return fmt.Errorf("ingestion interrupted at %d/%d chunks: %w", done, totalChunks, ctx.Err())
		default:
		}

		batchEnd := batchStart + ing.batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}

		vectors, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return rqerrors.New(rqerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("failed to embed passages %d-%d of %s", batchStart, batchEnd, name), err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d passages of %s", len(vectors), len(batch), name)
		}
		for j, c := range batch {
			c.Embedding = vectors[j]
		}

		done := embedded.Add(int64(len(batch)))
		ing.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageEmbedding,
			Current:     int(done),
			Total:       totalChunks,
			CurrentFile: name,
		})
	}
	return nil
}

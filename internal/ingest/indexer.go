package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/passage"
)

// DefaultBatchSize is how many passages are embedded and upserted per
// store call.
const DefaultBatchSize = 64

// maxLineBytes caps one JSONL record; a manual page is far below this.
const maxLineBytes = 1 << 20

// PassageStore is what the indexer needs from the passage layer.
type PassageStore interface {
	Add(ctx context.Context, passages []passage.Passage) error
	DeleteBySource(ctx context.Context, source string) (int64, error)
}

// passageRecord is one JSONL line produced by the external extraction step.
type passageRecord struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// SourceCount is the per-source outcome of an indexing run.
type SourceCount struct {
	Source   string
	Passages int
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Indexed  int           // passages written
	Replaced int64         // pre-existing passages removed first
	Sources  []SourceCount // per source, sorted by name
}

// Indexer loads JSONL passage records into the passage store in batches.
type Indexer struct {
	store     PassageStore
	batchSize int
	logger    log.Logger
}

// NewIndexer creates an Indexer. batchSize < 1 falls back to
// DefaultBatchSize.
func NewIndexer(store PassageStore, batchSize int, logger log.Logger) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("passage store is required")
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Indexer{store: store, batchSize: batchSize, logger: logger}, nil
}

// IndexFile loads one JSONL file. Every source named in the file has its
// existing passages removed before the new ones are added; a failure
// mid-run leaves already-written batches in place, and re-running the same
// file converges on the same index.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*IndexReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening passages file: %w", err)
	}
	defer f.Close()

	passages, err := readPassages(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("no passage records in %s", path)
	}

	perSource := make(map[string]int)
	for _, p := range passages {
		perSource[p.Source]++
	}
	sources := slices.Sorted(maps.Keys(perSource))

	report := &IndexReport{}
	for _, source := range sources {
		removed, err := ix.store.DeleteBySource(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("replacing source %s: %w", source, err)
		}
		if removed > 0 {
			ix.logger.Info("replacing indexed source", "source", source, "removed", removed)
		}
		report.Replaced += removed
	}

	for start := 0; start < len(passages); start += ix.batchSize {
		end := min(start+ix.batchSize, len(passages))
		if err := ix.store.Add(ctx, passages[start:end]); err != nil {
			return nil, fmt.Errorf("indexing batch %d-%d: %w", start+1, end, err)
		}
		report.Indexed = end
		ix.logger.Debug("indexed batch", "done", end, "total", len(passages))
	}

	for _, source := range sources {
		report.Sources = append(report.Sources, SourceCount{Source: source, Passages: perSource[source]})
	}

	ix.logger.Info("indexed passages",
		"file", path,
		"passages", report.Indexed,
		"sources", len(report.Sources))
	return report, nil
}

// readPassages parses JSONL records, one passage per line. Blank lines are
// allowed; anything else malformed is an error naming the line.
func readPassages(r io.Reader) ([]passage.Passage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var passages []passage.Passage
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec passageRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec.Source = strings.TrimSpace(rec.Source)
		rec.Text = strings.TrimSpace(rec.Text)
		switch {
		case rec.Source == "":
			return nil, fmt.Errorf("line %d: missing source", line)
		case rec.Page < 1:
			return nil, fmt.Errorf("line %d: invalid page %d", line, rec.Page)
		case rec.Text == "":
			return nil, fmt.Errorf("line %d: empty text", line)
		}

		passages = append(passages, passage.Passage{
			ID:     passage.Key(rec.Source, rec.Page),
			Source: rec.Source,
			Page:   rec.Page,
			Text:   rec.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading passages: %w", err)
	}
	return passages, nil
}

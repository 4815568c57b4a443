// Package translate rewrites the text of a finished subtitle into another
// language with an LLM, keeping every cue's timing.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/subtitle"
)

const DefaultBatchSize = 50

// one cue sent to the model
type Item struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type Options struct {
	// source language, detected by the model when empty
	InputLanguage  string
	TargetLanguage string
	// extra instructions appended to the prompt
	Prompt string
	// cues per request
	BatchSize int
	// requests in flight
	Concurrency int
}

type Translator struct {
	client Completer
	opts   Options
	log    *logging.Logger
}

func New(client Completer, opts Options, log *logging.Logger) (*Translator, error) {
	if opts.TargetLanguage == "" {
		return nil, errors.New("target language is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Translator{client: client, opts: opts, log: log}, nil
}

// Translate returns a copy of sub with every non-empty cue translated. Empty
// cues are not sent and stay empty.
func (t *Translator) Translate(ctx context.Context, sub *subtitle.Subtitle) (*subtitle.Subtitle, error) {
	var items []Item
	for i, e := range sub.Entries {
		if strings.TrimSpace(e.Text) != "" {
			items = append(items, Item{Index: i, Text: e.Text})
		}
	}

	out := &subtitle.Subtitle{
		Entries:  make([]subtitle.Entry, len(sub.Entries)),
		Language: language.Normalize(t.opts.TargetLanguage),
		Format:   sub.Format,
	}
	copy(out.Entries, sub.Entries)
	if len(items) == 0 {
		return out, nil
	}

	translated, err := t.translateItems(ctx, items)
	if err != nil {
		return nil, err
	}
	for _, r := range translated {
		if r.Index < 0 || r.Index >= len(out.Entries) {
			return nil, fmt.Errorf("model returned unknown cue index %d", r.Index)
		}
		out.Entries[r.Index].Text = subtitle.NormalizeText(r.Text)
	}
	return out, nil
}

// batches go through a worker pool; the first failure cancels the rest
func (t *Translator) translateItems(ctx context.Context, items []Item) ([]Item, error) {
	var batches [][]Item
	for i := 0; i < len(items); i += t.opts.BatchSize {
		batches = append(batches, items[i:min(i+t.opts.BatchSize, len(items))])
	}
	if len(batches) == 1 {
		return t.translateBatch(ctx, batches[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type batchResult struct {
		index int
		items []Item
		err   error
	}

	workChan := make(chan int)
	resultChan := make(chan batchResult, len(batches))

	var wg sync.WaitGroup
	for range min(t.opts.Concurrency, len(batches)) {
		wg.Go(func() {
			for idx := range workChan {
				if ctx.Err() != nil {
					resultChan <- batchResult{index: idx, err: ctx.Err()}
					continue
				}
				res, err := t.translateBatch(ctx, batches[idx])
				if err != nil {
					cancel()
				}
				resultChan <- batchResult{index: idx, items: res, err: err}
			}
		})
	}

	go func() {
		defer close(workChan)
		for i := range batches {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var all []Item
	var firstErr error
	for r := range resultChan {
		if r.err != nil {
			if firstErr == nil || errors.Is(firstErr, context.Canceled) {
				firstErr = fmt.Errorf("batch %d failed: %w", r.index, r.err)
			}
			continue
		}
		t.log.Debugw("batch translated", "batch", r.index, "cues", len(r.items))
		all = append(all, r.items...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	return all, nil
}

func (t *Translator) translateBatch(ctx context.Context, items []Item) ([]Item, error) {
	response, err := t.client.Complete(ctx, BuildPrompt(t.opts, items))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	results, err := parseItems(response)
	if err != nil {
		return nil, err
	}
	if len(results) != len(items) {
		return nil, fmt.Errorf("expected %d results, got %d", len(items), len(results))
	}

	want := make(map[int]bool, len(items))
	for _, it := range items {
		want[it.Index] = true
	}
	for _, r := range results {
		if !want[r.Index] {
			return nil, fmt.Errorf("model returned unexpected cue index %d", r.Index)
		}
	}
	return results, nil
}

// BuildPrompt creates the translation request for one batch.
func BuildPrompt(opts Options, items []Item) string {
	var sb strings.Builder

	target := language.Name(opts.TargetLanguage)
	if opts.InputLanguage != "" {
		fmt.Fprintf(&sb, "Translate the following %s subtitle texts to %s.\n\n", language.Name(opts.InputLanguage), target)
	} else {
		fmt.Fprintf(&sb, "Translate the following subtitle texts to %s.\n\n", target)
	}

	sb.WriteString("The texts were recognized from subtitle images and may contain OCR mistakes; translate the intended text.\n")
	sb.WriteString("Keep line breaks (\\n) where they fit the translation.\n")
	sb.WriteString("Reply with a JSON array only, one object with 'index' and 'text' per input object.\n")
	sb.WriteString("The 'index' values must match the input exactly. No explanation or markdown.\n\n")

	if opts.Prompt != "" {
		fmt.Fprintf(&sb, "Additional instructions: %s\n\n", opts.Prompt)
	}

	sb.WriteString("Input JSON:\n")
	data, _ := json.MarshalIndent(items, "", "  ")
	sb.Write(data)
	sb.WriteString("\n")
	return sb.String()
}

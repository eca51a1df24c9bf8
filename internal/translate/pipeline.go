// Package translate drives the translation pipeline: extract inline groups
// from an HTML tree, batch them into token-budgeted segments, send each
// segment through the completion service, and fit every translated group
// back into its original node positions.
package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/doctrans/internal/htmldoc"
	"github.com/dgallion1/doctrans/internal/llm"
	"github.com/dgallion1/doctrans/internal/ratelimit"
	"github.com/dgallion1/doctrans/internal/segment"
)

// completer matches the llm.Client methods the pipeline uses; tests swap in
// a scripted fake.
type completer interface {
	StreamComplete(ctx context.Context, s llm.Session, prompt string, opts llm.Options) (string, string, error)
}

// Config holds the translation parameters.
type Config struct {
	SourceLang string
	TargetLang string

	TranslateModel string
	RestructModel  string

	MaxSegmentTokens int
	TokenCounter     segment.TokenCounter // Defaults to segment.EstimateTokens.

	RestructMaxRetry int // Defaults to 10.
}

// Translator runs the pipeline against one completion client and one
// rate controller shared by all concurrent tasks.
type Translator struct {
	client completer
	rate   *ratelimit.Controller
	cfg    Config
	log    *slog.Logger
}

func New(client *llm.Client, rate *ratelimit.Controller, cfg Config, log *slog.Logger) *Translator {
	return newTranslator(client, rate, cfg, log)
}

func newTranslator(client completer, rate *ratelimit.Controller, cfg Config, log *slog.Logger) *Translator {
	if cfg.TokenCounter == nil {
		cfg.TokenCounter = segment.EstimateTokens
	}
	if cfg.RestructMaxRetry <= 0 {
		cfg.RestructMaxRetry = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Translator{client: client, rate: rate, cfg: cfg, log: log}
}

// TranslateTree translates every inline group in doc, mutating text leaves
// in place, and returns one FitStatus per group processed.
func (t *Translator) TranslateTree(ctx context.Context, doc *htmldoc.Document) []FitStatus {
	return t.TranslateGroups(ctx, htmldoc.Extract(doc.Root))
}

// TranslateGroups translates pre-extracted groups. Segments run
// concurrently; within a segment, fit-back tasks run concurrently too.
// Failures are isolated per group or segment, never aborting siblings.
func (t *Translator) TranslateGroups(ctx context.Context, groups htmldoc.GroupMap) []FitStatus {
	segs := segment.Split(groups, segment.Config{
		MaxTokens: t.cfg.MaxSegmentTokens,
		Counter:   t.cfg.TokenCounter,
		Log:       t.log,
	})

	results := make([][]FitStatus, len(segs))
	var wg sync.WaitGroup
	for i, seg := range segs {
		wg.Add(1)
		go func(i int, seg segment.Segment) {
			defer wg.Done()
			results[i] = t.translateSegment(ctx, seg)
		}(i, seg)
	}
	wg.Wait()

	var flat []FitStatus
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat
}

// translateSegment issues one completion request for all groups in the
// segment and fans out one fit-back task per group. The returned statuses
// follow the segment-local group order.
func (t *Translator) translateSegment(ctx context.Context, seg segment.Segment) []FitStatus {
	statuses := make([]FitStatus, len(seg))
	if len(seg) == 0 {
		return statuses
	}

	segmentFail := func(msg string, err error) []FitStatus {
		t.log.Warn(msg, "groups", len(seg), "error", err)
		for i := range statuses {
			statuses[i] = FitFail
		}
		return statuses
	}

	// Group texts with embedded newlines stripped, keyed by segment-local
	// id; also kept for the fit-back original-text argument.
	groupsIn := make(map[string]string, len(seg))
	pairs := make([][2]string, len(seg))
	for i, e := range seg {
		text := strings.ReplaceAll(e.Group.String(), "\n", "")
		groupsIn[e.Key] = text
		pairs[i] = [2]string{e.Key, text}
	}

	session := llm.Session{
		Model:  t.cfg.TranslateModel,
		System: translateSystemPrompt(t.cfg.SourceLang, t.cfg.TargetLang),
	}
	prompt := translateUserPrompt(t.cfg.SourceLang, t.cfg.TargetLang, encodeOrderedObject(pairs))

	content, finish, err := t.complete(ctx, session, prompt, llm.Options{
		Temperature: 0.01,
		JSONMode:    true,
	})
	if err != nil {
		return segmentFail("segment translation failed", err)
	}
	if finish == llm.FinishLength {
		// The service ran out of output room. The whole segment's output is
		// dropped with no partial credit; redoing the segment at finer
		// granularity is a possible future strategy.
		return segmentFail("segment translation truncated by length limit, dropping output", nil)
	}

	groupsOut, err := DecodeLooseObject(content)
	if err != nil {
		return segmentFail("segment translation response not decodable", err)
	}

	var wg sync.WaitGroup
	for i, e := range seg {
		translated, ok := groupsOut[e.Key]
		if !ok {
			t.log.Warn("translation response missing group", "key", e.Key)
			statuses[i] = FitFail
			continue
		}
		wg.Add(1)
		go func(i int, e segment.Entry, translated string) {
			defer wg.Done()
			status, err := t.fitIn(ctx, e.Group, groupsIn[e.Key], translated)
			if err != nil {
				t.log.Warn("fit-back failed", "key", e.Key, "error", err)
				status = FitFail
			}
			statuses[i] = status
		}(i, e, translated)
	}
	wg.Wait()
	return statuses
}

// complete routes one streaming completion call through the rate-controlled
// executor.
func (t *Translator) complete(ctx context.Context, s llm.Session, prompt string, opts llm.Options) (string, string, error) {
	type result struct {
		content string
		finish  string
	}
	res, err := ratelimit.Do(ctx, t.rate, func(ctx context.Context) (result, error) {
		content, finish, err := t.client.StreamComplete(ctx, s, prompt, opts)
		return result{content: content, finish: finish}, err
	})
	return res.content, res.finish, err
}

// Tally counts statuses by kind.
type Tally struct {
	Success    int
	Compromise int
	Fail       int
}

// CountStatuses aggregates a status list into a tally.
func CountStatuses(statuses []FitStatus) Tally {
	var t Tally
	for _, s := range statuses {
		switch s {
		case FitSuccess:
			t.Success++
		case FitCompromise:
			t.Compromise++
		case FitFail:
			t.Fail++
		}
	}
	return t
}

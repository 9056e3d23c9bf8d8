package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/google/uuid"
)

// Compactor summarizes old turns into episodic and semantic items.
type Compactor struct {
	store      Store
	summarizer Summarizer
	policy     CompactionPolicy
}

func NewCompactor(store Store, summarizer Summarizer, policy CompactionPolicy) *Compactor {
	if summarizer == nil {
		summarizer = NewHeuristicSummarizer()
	}
	return &Compactor{store: store, summarizer: summarizer, policy: policy}
}

// SelectCompactionWindow returns the uncompacted turns older than the
// RawTailTurns most recent ones, in observation order. A tool call and its
// result always land on the same side of the boundary.
func (c *Compactor) SelectCompactionWindow(ctx context.Context, excludeTurnIDs ...string) ([]string, error) {
	log, err := loadUncompacted(ctx, c.store, excludeTurnIDs)
	if err != nil {
		return nil, fmt.Errorf("select compaction window: %w", err)
	}
	window, _ := log.split(c.policy.RawTailTurns)
	return window, nil
}

// Compact summarizes turnIDs and writes one episodic item covering exactly
// those turns plus any extracted facts, all in one store transaction.
func (c *Compactor) Compact(ctx context.Context, turnIDs []string) error {
	if len(turnIDs) == 0 {
		return nil
	}

	var items []RawTraceItem
	for _, turnID := range turnIDs {
		turnItems, err := c.store.RawTraceByTurn(ctx, turnID)
		if err != nil {
			return fmt.Errorf("compact load turn %s: %w", turnID, err)
		}
		items = append(items, turnItems...)
	}
	if len(items) == 0 {
		return nil
	}

	summary, err := c.summarizer.Summarize(ctx, items)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSummaryFailed, err)
	}
	text := strings.TrimSpace(summary.Text)
	if text == "" {
		return fmt.Errorf("%w: empty summary", ErrSummaryFailed)
	}

	batch := uuid.NewString()
	ts := nowTS()
	out := []Item{&EpisodicItem{
		ID:       "ep_" + batch,
		TS:       ts,
		TurnIDs:  append([]string(nil), turnIDs...),
		Summary:  text,
		Tags:     []string{"compaction"},
		Salience: 0.5,
	}}
	for i, fact := range dedupeFacts(summary.Facts) {
		out = append(out, &SemanticItem{
			ID:         fmt.Sprintf("sem_%s_%03d", batch, i),
			TS:         ts,
			Fact:       fact,
			Tags:       []string{"compaction"},
			Confidence: 0.7,
			Salience:   0.5,
		})
	}

	if err := c.store.Add(ctx, out...); err != nil {
		return fmt.Errorf("compact write: %w", err)
	}
	logger.InfoCF("memory", "Compacted turns", map[string]interface{}{
		"turns": len(turnIDs),
		"items": len(items),
		"facts": len(out) - 1,
	})
	return nil
}

func dedupeFacts(facts []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(facts))
	for _, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		key := strings.ToLower(fact)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, fact)
	}
	return out
}

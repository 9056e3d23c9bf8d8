package memory

import "context"

// turnLog is the uncompacted part of the raw trace grouped by turn, with
// turns in the order they were first observed.
type turnLog struct {
	turns  []string
	byTurn map[string][]RawTraceItem
}

// loadUncompacted groups raw items of turns not yet covered by an episodic
// item. Excluded turns are dropped entirely.
func loadUncompacted(ctx context.Context, store Store, exclude []string) (turnLog, error) {
	raw, err := store.RawTrace(ctx)
	if err != nil {
		return turnLog{}, err
	}
	episodes, err := store.Episodic(ctx)
	if err != nil {
		return turnLog{}, err
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	for _, ep := range episodes {
		for _, id := range ep.TurnIDs {
			skip[id] = struct{}{}
		}
	}

	log := turnLog{byTurn: map[string][]RawTraceItem{}}
	for _, item := range raw {
		if _, ok := skip[item.TurnID]; ok {
			continue
		}
		if _, seen := log.byTurn[item.TurnID]; !seen {
			log.turns = append(log.turns, item.TurnID)
		}
		log.byTurn[item.TurnID] = append(log.byTurn[item.TurnID], item)
	}
	return log, nil
}

// split divides the turns into a compaction window and a verbatim tail of
// tailTurns turns. The boundary moves earlier until no tool call and its
// result sit on opposite sides.
func (l turnLog) split(tailTurns int) (window, tail []string) {
	if tailTurns < 0 {
		tailTurns = 0
	}
	boundary := len(l.turns) - tailTurns
	if boundary < 0 {
		boundary = 0
	}

	callAt := map[string]int{}
	resultAt := map[string]int{}
	for pos, turnID := range l.turns {
		for _, item := range l.byTurn[turnID] {
			if item.ToolCallID == "" {
				continue
			}
			switch item.TraceType {
			case TraceToolCall:
				callAt[item.ToolCallID] = pos
			case TraceToolResult:
				resultAt[item.ToolCallID] = pos
			}
		}
	}

	for moved := true; moved && boundary > 0; {
		moved = false
		for callID, c := range callAt {
			r, ok := resultAt[callID]
			if !ok {
				continue
			}
			lo, hi := c, r
			if lo > hi {
				lo, hi = hi, lo
			}
			if lo < boundary && hi >= boundary {
				boundary = lo
				moved = true
			}
		}
	}

	window = append([]string(nil), l.turns[:boundary]...)
	tail = append([]string(nil), l.turns[boundary:]...)
	return window, tail
}

// items flattens the raw items of turnIDs in turn order.
func (l turnLog) items(turnIDs []string) []RawTraceItem {
	var out []RawTraceItem
	for _, id := range turnIDs {
		out = append(out, l.byTurn[id]...)
	}
	return out
}

package segment

import (
	"strings"
	"time"

	"github.com/drewfead/tracewire/pkg/agentwire"
)

// tokenRun is the single in-flight accumulation buffer: consecutive
// token messages from one source, concatenated until a flush
// condition. At most one run is open per classifier at any time.
type tokenRun struct {
	source    string
	modelName string
	content   strings.Builder
	tokens    int
	started   time.Time
}

type accumulator struct {
	run *tokenRun
}

// add feeds one token message into the accumulator and returns any run
// completed by it. A source change (both sides named) closes the open
// run before the new one opens; an explicit completion flag closes the
// run right after appending.
func (a *accumulator) add(tok *agentwire.LLMToken, ts time.Time) []*tokenRun {
	var done []*tokenRun

	if a.run != nil && tok.Source != a.run.source && tok.Source != "" && a.run.source != "" {
		done = append(done, a.flush())
	}
	if a.run == nil {
		a.run = &tokenRun{source: tok.Source, started: ts}
	}
	a.run.content.WriteString(tok.Content)
	a.run.tokens += max(tok.TokenCount, 1)
	if tok.ModelName != "" {
		a.run.modelName = tok.ModelName
	}
	if a.run.source == "" && tok.Source != "" {
		a.run.source = tok.Source
	}

	if tok.IsFinal || tok.Phase == agentwire.PhaseEnd {
		done = append(done, a.flush())
	}
	return done
}

// flush closes and returns the open run, or nil when none is open.
func (a *accumulator) flush() *tokenRun {
	run := a.run
	a.run = nil
	return run
}

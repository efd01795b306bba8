// Package pipeline composes the trace stream stages: line splitting,
// envelope normalization, marker extraction, and classification. One
// pipeline per conversation; stages share nothing across instances.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/drewfead/tracewire/internal/diaglog"
	"github.com/drewfead/tracewire/internal/segment"
	"github.com/drewfead/tracewire/internal/transport"
	"github.com/drewfead/tracewire/pkg/agentwire"
)

// Options configures a pipeline.
type Options struct {
	ConversationID string
	Classifier     segment.Options
	Recorder       diaglog.Recorder
	Logger         *slog.Logger
	// SegmentBuffer sizes the outbound segment channel.
	SegmentBuffer int
}

// Pipeline drives one conversation's stream from raw chunks to
// ordered segments. Data flows strictly forward; each stage owns its
// own buffer and hands completed units to the next by value.
type Pipeline struct {
	conversationID string

	lines *agentwire.LineBuffer
	norm  *agentwire.Normalizer
	extr  *agentwire.Extractor
	cls   *segment.Classifier

	segs chan segment.Segment

	// Current turn accumulation: clean text plus extracted messages,
	// classified together when the turn closes.
	turnText strings.Builder
	turnMsgs []*agentwire.Message
}

// New creates a pipeline. The segment channel closes when the stream
// ends; that closure is the terminal signal for sinks.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SegmentBuffer <= 0 {
		opts.SegmentBuffer = 64
	}
	sink := diaglog.SinkAdapter{
		ConversationID: opts.ConversationID,
		Recorder:       opts.Recorder,
	}
	return &Pipeline{
		conversationID: opts.ConversationID,
		lines:          agentwire.NewLineBuffer(),
		norm:           agentwire.NewNormalizer(sink, opts.Logger),
		extr:           agentwire.NewExtractor(sink),
		cls:            segment.NewClassifier(opts.Classifier),
		segs:           make(chan segment.Segment, opts.SegmentBuffer),
	}
}

// Segments is the sink channel. It closes exactly once, when the
// upstream stream ends or the context is canceled.
func (p *Pipeline) Segments() <-chan segment.Segment {
	return p.segs
}

// Run consumes the source until it ends or ctx is canceled, emitting
// segments per completed turn. Malformed data never terminates the
// run; only the transport ending does. Run closes the segment channel
// before returning and reports the transport's terminal error, nil on
// a clean end.
func (p *Pipeline) Run(ctx context.Context, src transport.Source) error {
	defer close(p.segs)

	var terminal error
	for {
		select {
		case <-ctx.Done():
			p.finish(ctx)
			return ctx.Err()

		case err := <-src.Errors():
			if err != nil {
				terminal = err
			}

		case chunk, ok := <-src.Chunks():
			if !ok {
				// The source buffers its terminal error before closing
				// the chunk channel, so both cases can be ready at once
				// and the select may take this one first. Drain the
				// error here or it is lost.
				if terminal == nil {
					select {
					case err := <-src.Errors():
						terminal = err
					default:
					}
				}
				p.finish(ctx)
				return terminal
			}
			for _, line := range p.lines.Write(chunk) {
				if !p.processLine(ctx, line) {
					return ctx.Err()
				}
			}
		}
	}
}

// processLine runs one envelope line through normalize and extract,
// closing the turn on lifecycle boundaries. Returns false only when
// ctx ended mid-emission.
func (p *Pipeline) processLine(ctx context.Context, line string) bool {
	res := p.norm.Normalize(line)
	if res.Text != "" {
		clean, msgs := p.extr.Extract(res.Text)
		p.turnText.WriteString(clean)
		p.turnMsgs = append(p.turnMsgs, msgs...)
	}
	if res.Terminal {
		return p.closeTurn(ctx)
	}
	return true
}

// closeTurn classifies the accumulated turn and emits its segments,
// then resets per-turn state for the next turn.
func (p *Pipeline) closeTurn(ctx context.Context) bool {
	// An unterminated marker fragment at a turn boundary is dropped;
	// the extractor records the diagnostic.
	p.extr.Reset()

	segs := p.cls.Parse(p.turnText.String(), p.turnMsgs)
	p.turnText.Reset()
	p.turnMsgs = nil

	for _, s := range segs {
		select {
		case p.segs <- s:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// finish flushes the trailing partial line, then closes the final
// turn. A trailing fragment that is not a well-formed line is
// discarded, matching the reader contract.
func (p *Pipeline) finish(ctx context.Context) {
	if line, ok := p.lines.Flush(); ok {
		p.processLine(ctx, line)
	}
	p.closeTurn(ctx)
}

package classifier

import "stream-classifier/types"

// DefaultStartTags returns the start tag spellings recognised by default
func DefaultStartTags() []string { return []string{"<think>", "<think>\n"} }

// DefaultEndTags returns the end tag spellings recognised by default
func DefaultEndTags() []string { return []string{"</think>", "</think>\n"} }

// Thinking classifies models that wrap reasoning in literal tags such as
// <think>...</think>. A chunk equal to a tag switches state and produces
// no response; other chunks are reasoning while inside the tags and text
// otherwise. A tool call always ends the reasoning block.
type Thinking struct {
	opts                options
	start               map[string]struct{}
	end                 map[string]struct{}
	thinking            bool
	swallowLeadingStart bool
	seenContent         bool
}

// NewThinking creates a thinking-tag classifier that starts outside a
// reasoning block. Use WithInitialThinking for models that open every
// turn in an implicit one.
func NewThinking(opts ...Option) *Thinking {
	return newThinking(newOptions(opts), false, false)
}

func newThinking(o options, initial, swallow bool) *Thinking {
	if o.initialThinking != nil {
		initial = *o.initialThinking
	}
	if o.swallowLeadingStart != nil {
		swallow = *o.swallowLeadingStart
	}
	return &Thinking{
		opts:                o,
		start:               tagSet(o.startTags),
		end:                 tagSet(o.endTags),
		thinking:            initial,
		swallowLeadingStart: swallow,
	}
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// IsThinking reports whether the classifier is inside a reasoning block
func (t *Thinking) IsThinking() bool { return t.thinking }

// Classify implements Classifier
func (t *Thinking) Classify(ev types.Event) (types.Response, bool) {
	switch ev.Kind {
	case types.EventChunk:
		if _, ok := t.start[ev.Text]; ok {
			if t.swallowLeadingStart && !t.seenContent {
				t.opts.log(categoryDebug, "Dropped leading start tag", map[string]interface{}{
					"tag":      ev.Text,
					"thinking": t.thinking,
				})
				return types.Response{}, false
			}
			t.thinking = true
			return types.Response{}, false
		}
		if _, ok := t.end[ev.Text]; ok {
			t.thinking = false
			return types.Response{}, false
		}
		t.seenContent = true
		if t.thinking {
			return types.ReasoningResponse(ev.Text), true
		}
		return types.TextResponse(ev.Text), true

	case types.EventToolCall:
		t.thinking = false
		return passToolCall(ev)
	}
	return types.Response{}, false
}

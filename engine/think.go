package engine

import (
	"regexp"
	"strings"

	"ragbot/types"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

var thinkBlockRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// splitThinking separates a complete response into answer text and thinking
// text. Markers never survive into either side.
func splitThinking(raw string) (content, thinking string) {
	var thoughts []string
	for _, m := range thinkBlockRe.FindAllStringSubmatch(raw, -1) {
		if t := strings.TrimSpace(m[1]); t != "" {
			thoughts = append(thoughts, t)
		}
	}
	content = thinkBlockRe.ReplaceAllString(raw, "")
	// An opened but never closed block is all thinking.
	if i := strings.Index(content, thinkOpen); i >= 0 {
		if t := strings.TrimSpace(content[i+len(thinkOpen):]); t != "" {
			thoughts = append(thoughts, t)
		}
		content = content[:i]
	}
	return strings.TrimSpace(content), strings.Join(thoughts, "\n")
}

// thinkDemux incrementally routes streamed fragments into answer text and
// thinking text. Markers can arrive split across fragment boundaries, so a
// possible partial marker is held back until the next fragment decides it.
type thinkDemux struct {
	buf      string
	answer   strings.Builder
	thinking strings.Builder
	inThink  bool
}

// Feed consumes one fragment and returns the events it produces: chunk events
// for new answer text and thinking events carrying the thinking accumulated
// so far.
func (d *thinkDemux) Feed(fragment string) []types.StreamEvent {
	d.buf += fragment
	var events []types.StreamEvent
	thinkingGrew := false

	for {
		if d.inThink {
			if i := strings.Index(d.buf, thinkClose); i >= 0 {
				if i > 0 {
					d.thinking.WriteString(d.buf[:i])
				}
				events = append(events, types.StreamEvent{Type: types.EventThinking, Thinking: d.thinking.String()})
				thinkingGrew = false
				d.buf = d.buf[i+len(thinkClose):]
				d.inThink = false
				continue
			}
			safe := len(d.buf) - partialTail(d.buf, thinkClose)
			if safe > 0 {
				d.thinking.WriteString(d.buf[:safe])
				d.buf = d.buf[safe:]
				thinkingGrew = true
			}
			break
		}

		if i := strings.Index(d.buf, thinkOpen); i >= 0 {
			if i > 0 {
				d.answer.WriteString(d.buf[:i])
				events = append(events, types.StreamEvent{Type: types.EventChunk, Content: d.buf[:i]})
			}
			d.buf = d.buf[i+len(thinkOpen):]
			d.inThink = true
			continue
		}
		safe := len(d.buf) - partialTail(d.buf, thinkOpen)
		if safe > 0 {
			d.answer.WriteString(d.buf[:safe])
			events = append(events, types.StreamEvent{Type: types.EventChunk, Content: d.buf[:safe]})
			d.buf = d.buf[safe:]
		}
		break
	}

	if thinkingGrew {
		events = append(events, types.StreamEvent{Type: types.EventThinking, Thinking: d.thinking.String()})
	}
	return events
}

// Flush drains any held-back text once the stream ends and returns the final
// accumulated answer and thinking.
func (d *thinkDemux) Flush() (events []types.StreamEvent, content, thinking string) {
	if d.buf != "" {
		if d.inThink {
			d.thinking.WriteString(d.buf)
			events = append(events, types.StreamEvent{Type: types.EventThinking, Thinking: d.thinking.String()})
		} else {
			d.answer.WriteString(d.buf)
			events = append(events, types.StreamEvent{Type: types.EventChunk, Content: d.buf})
		}
		d.buf = ""
	}
	return events, strings.TrimSpace(d.answer.String()), strings.TrimSpace(d.thinking.String())
}

// partialTail reports the length of the longest suffix of s that is a proper
// prefix of marker.
func partialTail(s, marker string) int {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(marker, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

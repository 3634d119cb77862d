// Package flashcard implements the spaced-repetition card and state
// types: two-sided and cloze cards, their serialized SR-state markers,
// and the policy that governs padding a missing state on render.
package flashcard

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/weavedoc/textgen/internal/config"
	"github.com/weavedoc/textgen/internal/xerrors"
)

// stateRegex matches one serialized FlashcardState: !YYYY-MM-DD,interval,ease.
var stateRegex = regexp.MustCompile(`!(\d{4}-\d{2}-\d{2}),(\d+),(\d+)`)

// statesMarkerRegex finds every <!--SR:...--> span in a file or section body.
var statesMarkerRegex = regexp.MustCompile(`<!--SR:(.*?)-->`)

const statesFormat = "<!--SR:%s-->"

const dateLayout = "2006-01-02"

// FlashcardState is one scheduling record: a calendar date, an interval
// in days, and an ease factor.
type FlashcardState struct {
	Date     time.Time
	Interval int
	Ease     int
}

// String renders the state as "!YYYY-MM-DD,<interval>,<ease>".
func (s FlashcardState) String() string {
	return fmt.Sprintf("!%s,%d,%d", s.Date.Format(dateLayout), s.Interval, s.Ease)
}

// CompileManyStates yields every FlashcardState found in text, in order.
func CompileManyStates(text string) ([]FlashcardState, error) {
	matches := stateRegex.FindAllStringSubmatch(text, -1)
	states := make([]FlashcardState, 0, len(matches))
	for _, m := range matches {
		date, err := time.Parse(dateLayout, m[1])
		if err != nil {
			return nil, err
		}
		var interval, ease int
		if _, err := fmt.Sscanf(m[2], "%d", &interval); err != nil {
			return nil, err
		}
		if _, err := fmt.Sscanf(m[3], "%d", &ease); err != nil {
			return nil, err
		}
		states = append(states, FlashcardState{Date: date, Interval: interval, Ease: ease})
	}
	return states, nil
}

// CompileState requires exactly one match in text.
func CompileState(text string) (FlashcardState, error) {
	states, err := CompileManyStates(text)
	if err != nil {
		return FlashcardState{}, err
	}
	switch len(states) {
	case 0:
		return FlashcardState{}, &xerrors.NoMatchError{Text: text}
	case 1:
		return states[0], nil
	default:
		return FlashcardState{}, &xerrors.AmbiguousMatchError{Text: text, Count: len(states)}
	}
}

// FlashcardStateGroup is an ordered sequence of states serialized
// together as a single <!--SR:...--> marker. An empty group serializes
// to the empty string.
type FlashcardStateGroup []FlashcardState

// String concatenates the group's states inside one SR marker, or
// returns "" if the group is empty.
func (g FlashcardStateGroup) String() string {
	if len(g) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range g {
		b.WriteString(s.String())
	}
	return fmt.Sprintf(statesFormat, b.String())
}

// Padded returns g extended to n entries by appending (today, interval=1,
// ease=250) states, used by the init-flashcards render policy. If g
// already has n or more entries, it is returned unchanged.
func (g FlashcardStateGroup) Padded(n int, today time.Time) FlashcardStateGroup {
	if len(g) >= n {
		return g
	}
	padded := append(FlashcardStateGroup(nil), g...)
	for len(padded) < n {
		padded = append(padded, FlashcardState{Date: today, Interval: 1, Ease: 250})
	}
	return padded
}

// CompileManyStateGroups finds every <!--SR:...--> span in text and
// parses the states strictly inside each span.
func CompileManyStateGroups(text string) ([]FlashcardStateGroup, error) {
	matches := statesMarkerRegex.FindAllStringSubmatch(text, -1)
	groups := make([]FlashcardStateGroup, 0, len(matches))
	for _, m := range matches {
		states, err := CompileManyStates(m[1])
		if err != nil {
			return nil, err
		}
		groups = append(groups, FlashcardStateGroup(states))
	}
	return groups, nil
}

// FlashcardGroup is a renderable card: a TwoSided pair or a Cloze
// context. Len reports the number of sides (TwoSided) or clozes (Cloze).
type FlashcardGroup interface {
	Render(cfg *config.Config) string
	Len() int
}

// TwoSided is a two-sided card, optionally reversible for study in both
// directions.
type TwoSided struct {
	Left       string
	Right      string
	Reversible bool
}

// Render joins Left and Right with the separator selected from cfg's
// table by (Reversible, multiline).
func (t TwoSided) Render(cfg *config.Config) string {
	multiline := strings.Contains(t.Left, "\n") || strings.Contains(t.Right, "\n")
	sep := cfg.Separator(t.Reversible, multiline)
	return t.Left + sep + t.Right
}

// Len returns 2 for a reversible card, 1 otherwise.
func (t TwoSided) Len() int {
	if t.Reversible {
		return 2
	}
	return 1
}

// clozePattern builds (and would normally cache) the regex that finds
// clozes delimited by an open/close token pair.
func clozePattern(token config.ClozeToken) *regexp.Regexp {
	open, close := regexp.QuoteMeta(token.Open), regexp.QuoteMeta(token.Close)
	return regexp.MustCompile(open + "(.+?)" + close)
}

// Cloze is a cloze-deletion card: a context string containing zero or
// more token-delimited clozes.
type Cloze struct {
	Context string
	Token   config.ClozeToken
}

// Render returns the context verbatim; the cloze tokens remain embedded
// for the consuming spaced-repetition tool to strip or reveal.
func (c Cloze) Render(cfg *config.Config) string {
	return c.Context
}

// Clozes returns the text captured by each cloze in the context, in
// order of appearance.
func (c Cloze) Clozes() []string {
	matches := clozePattern(c.Token).FindAllStringSubmatch(c.Context, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1]
	}
	return out
}

// Len returns the number of clozes found in Context.
func (c Cloze) Len() int {
	return len(c.Clozes())
}

// RenderPolicy carries rendering behavior that would otherwise require
// monkey-patching a shared renderer; StatefulFlashcardGroup.Render
// consults it. The generate pipeline does not build a RenderPolicy:
// Environment.Exec hands the same two settings to programs as a
// "render_policy" namespace map.
type RenderPolicy struct {
	PadMissingFlashcardState bool
	Today                    time.Time
}

// StatefulFlashcardGroup pairs a flashcard with its SR state.
type StatefulFlashcardGroup struct {
	Flashcard FlashcardGroup
	State     FlashcardStateGroup
}

// Render returns "<flashcard> <state>", padding state up to the
// flashcard's side count first when policy.PadMissingFlashcardState is
// set.
func (g StatefulFlashcardGroup) Render(cfg *config.Config, policy RenderPolicy) string {
	state := g.State
	if policy.PadMissingFlashcardState {
		state = state.Padded(g.Flashcard.Len(), policy.Today)
	}
	return g.Flashcard.Render(cfg) + " " + state.String()
}

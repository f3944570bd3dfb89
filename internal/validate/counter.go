// ABOUTME: Character-limit counter backing the chat composer
// ABOUTME: Reports remaining characters and whether send is allowed

package validate

import (
	"strings"
	"unicode/utf8"
)

// Counter tracks a composer's character budget.
type Counter struct {
	Max int
	// WarnAt is the remaining-count threshold below which the count is shown. Zero means 10% of Max.
	WarnAt int
}

// CounterState is the counter's view of the current text.
type CounterState struct {
	Length    int
	Remaining int
	Over      bool
	Warn      bool
	CanSend   bool
}

// State evaluates text against the counter.
func (c Counter) State(text string) CounterState {
	max := c.Max
	if max <= 0 {
		max = DefaultMaxChars
	}
	warnAt := c.WarnAt
	if warnAt <= 0 {
		warnAt = max / 10
	}

	n := utf8.RuneCountInString(text)
	remaining := max - n
	return CounterState{
		Length:    n,
		Remaining: remaining,
		Over:      remaining < 0,
		Warn:      remaining <= warnAt,
		CanSend:   remaining >= 0 && strings.TrimSpace(text) != "",
	}
}

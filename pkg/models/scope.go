package models

import (
	"fmt"
	"time"
)

// Period is a half-open date range [From, To).
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Validate checks that the range is non-empty.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("period bounds must be set")
	}
	if !p.From.Before(p.To) {
		return fmt.Errorf("period start %s is not before end %s", p.From.Format(time.DateOnly), p.To.Format(time.DateOnly))
	}
	return nil
}

// Scope is what a Fact Provider is asked for: the current and comparison
// periods whose sales are summed into each fact's measure groups.
type Scope struct {
	Current    Period `json:"current"`
	Comparison Period `json:"comparison"`
}

// Validate checks both periods.
func (s Scope) Validate() error {
	if err := s.Current.Validate(); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	if err := s.Comparison.Validate(); err != nil {
		return fmt.Errorf("comparison: %w", err)
	}
	return nil
}

// YearOverYear returns a scope comparing [from, to) with the same range one
// year earlier.
func YearOverYear(from, to time.Time) Scope {
	return Scope{
		Current:    Period{From: from, To: to},
		Comparison: Period{From: from.AddDate(-1, 0, 0), To: to.AddDate(-1, 0, 0)},
	}
}

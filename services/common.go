package services

import (
	"errors"
	"fmt"
	"time"

	"yoma-api/errs"
	"yoma-api/store"
)

// PagedResult is a page of items with the total count before paging.
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"total_count"`
}

func paged[T any](items []T, total int64) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PagedResult[T]{Items: items, TotalCount: total}
}

// ProcessResult summarises one run of a ledger job.
type ProcessResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// LedgerConfig bounds the batch jobs. A record left in Processing for
// longer than StaleAfter is picked up again.
type LedgerConfig struct {
	BatchSize  int
	MaxRetries int
	StaleAfter time.Duration
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 15 * time.Minute
	}
	return c
}

func (c LedgerConfig) query(now time.Time) store.ProcessingQuery {
	return store.ProcessingQuery{
		MaxRetries:  c.MaxRetries,
		Limit:       c.BatchSize,
		StaleBefore: now.Add(-c.StaleAfter),
	}
}

// notFound translates store.ErrNotFound into the entity specific error.
func notFound(err error, entity string, key any) error {
	if errors.Is(err, store.ErrNotFound) {
		return errs.NotFound(entity, key)
	}
	return err
}

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// clock is embedded by services that need the current time.
type clock struct {
	now func() time.Time
}

func (c clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// SetClock replaces the time source.
func (c *clock) SetClock(now func() time.Time) { c.now = now }

func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Package revalidate implements the Revalidator (spec §4.7): a sweep over
// ValidationResult rows that keeps isExpired and validationStatus current
// as certificates age past their notAfter, followed by an UploadedFile
// rollup recompute.
package revalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/jmhodges/clock"

	"github.com/icao-pkd/pkd-core/core"
	"github.com/icao-pkd/pkd-core/internal/blog"
	"github.com/icao-pkd/pkd-core/internal/idgen"
)

// Engine runs one revalidation sweep per Run call. clk is injected so tests
// can drive expiry transitions deterministically with clock.NewFake.
type Engine struct {
	store core.Store
	clk   clock.Clock
	log   blog.Logger
}

// NewEngine constructs a revalidation Engine. clk defaults to the real wall
// clock when nil.
func NewEngine(store core.Store, clk clock.Clock, log blog.Logger) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = blog.Get()
	}
	return &Engine{store: store, clk: clk, log: log}
}

// Run walks every ValidationResult with a notAfter, transitions isExpired
// monotonically to true (or back to false while still valid), flips
// validationStatus to INVALID on a newly-expired transition, then recomputes
// each touched UploadedFile's rollup counts, per spec §4.7.
func (e *Engine) Run(ctx context.Context) (*core.RevalidationHistory, error) {
	start := e.clk.Now()
	h := &core.RevalidationHistory{ID: idgen.New(), RunAt: start}

	results, err := e.store.ValidationResultsWithExpiry(ctx)
	if err != nil {
		return nil, fmt.Errorf("revalidate: list validation results: %w", err)
	}

	touchedUploads := make(map[string]struct{})
	now := e.clk.Now()

	for _, v := range results {
		h.TotalProcessed++
		wasExpired := v.IsExpired
		nowExpired := now.After(v.NotAfter)

		switch {
		case nowExpired && !wasExpired:
			v.IsExpired = true
			v.ValidationStatus = core.ValidationInvalid
			h.NewlyExpired++
		case !nowExpired && wasExpired:
			v.IsExpired = false
			h.NewlyValid++
		default:
			h.Unchanged++
			continue
		}

		if err := e.store.UpdateValidationResult(ctx, &v); err != nil {
			h.Errors++
			e.log.Warning(fmt.Sprintf("revalidate: failed to update validation result %s: %s", v.ID, err))
			continue
		}
		touchedUploads[v.UploadedFileID] = struct{}{}
	}

	for uploadID := range touchedUploads {
		if err := e.store.RecomputeUploadRollup(ctx, uploadID); err != nil {
			h.Errors++
			e.log.Warning(fmt.Sprintf("revalidate: failed to recompute rollup for upload %s: %s", uploadID, err))
		}
	}

	h.DurationMs = e.clk.Now().Sub(start).Milliseconds()
	if err := e.store.SaveRevalidationHistory(ctx, h); err != nil {
		e.log.AuditErr(fmt.Sprintf("revalidate: failed to persist history %s: %s", h.ID, err))
	}
	return h, nil
}

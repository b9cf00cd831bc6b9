// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"context"
	"fmt"
	"sync"
)

// throttle runs per-chromosome jobs, at most Max at a time. Once a
// job fails, jobs that have not started yet are skipped, and the
// context given to running jobs is canceled.
type throttle struct {
	Max int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	slots   chan struct{}
	mtx     sync.Mutex
	err     error
	skipped int
}

func newThrottle(ctx context.Context, max int) *throttle {
	if max < 1 {
		max = 1
	}
	t := &throttle{Max: max, slots: make(chan struct{}, max)}
	t.ctx, t.cancel = context.WithCancel(ctx)
	return t
}

// Go waits for a free slot, then runs fn for the named chromosome in
// a new goroutine.
func (t *throttle) Go(chrom string, fn func(context.Context) error) {
	acquired := false
	select {
	case t.slots <- struct{}{}:
		acquired = true
	case <-t.ctx.Done():
	}
	if t.ctx.Err() != nil {
		if acquired {
			<-t.slots
		}
		t.mtx.Lock()
		t.skipped++
		t.mtx.Unlock()
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() { <-t.slots }()
		if err := fn(t.ctx); err != nil {
			t.report(fmt.Errorf("chromosome %s: %w", chrom, err))
		}
	}()
}

func (t *throttle) report(err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.err == nil {
		t.err = err
		t.cancel()
	}
}

// Wait waits for all started jobs and returns the first error. If
// the parent context was canceled before any job failed, its error is
// returned.
func (t *throttle) Wait() error {
	t.wg.Wait()
	defer t.cancel()
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.err != nil {
		return t.err
	} else if t.skipped > 0 {
		return t.ctx.Err()
	}
	return nil
}

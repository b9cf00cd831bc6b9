// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// batchArgs splits a chromosome list into contiguous batches, one
// container per batch.
type batchArgs struct {
	batch   int
	batches int
}

func (b *batchArgs) Flags(flags *flag.FlagSet) {
	flags.IntVar(&b.batches, "batches", 1, "number of batches to split the chromosome list into")
	flags.IntVar(&b.batch, "batch", -1, "only do `N`th batch (-1 = all)")
}

func (b *batchArgs) Check() error {
	if b.batches < 1 {
		return fmt.Errorf("invalid -batches %d: must be at least 1", b.batches)
	} else if b.batch >= b.batches {
		return fmt.Errorf("invalid -batch %d: must be less than -batches %d", b.batch, b.batches)
	}
	return nil
}

// Args returns the command line arguments that select one batch.
func (b *batchArgs) Args(batch int) []string {
	return []string{
		fmt.Sprintf("-batches=%d", b.batches),
		fmt.Sprintf("-batch=%d", batch),
	}
}

// RunBatches calls runFunc once per batch (or only for the selected
// batch, if any), and returns the return values in batch order along
// with the first error. The first error cancels the other calls.
func (b *batchArgs) RunBatches(ctx context.Context, runFunc func(context.Context, int) (string, error)) ([]string, error) {
	outputs := make([]string, b.batches)
	eg, ctx := errgroup.WithContext(ctx)
	for batch := 0; batch < b.batches; batch++ {
		if b.batch >= 0 && b.batch != batch {
			continue
		}
		batch := batch
		eg.Go(func() error {
			out, err := runFunc(ctx, batch)
			outputs[batch] = out
			return err
		})
	}
	err := eg.Wait()
	if b.batch >= 0 {
		outputs = outputs[b.batch : b.batch+1]
	}
	return outputs, err
}

// Slice returns the part of in that belongs to the selected batch,
// or all of in if no batch is selected.
func (b *batchArgs) Slice(in []string) []string {
	if b.batch < 0 {
		return in
	}
	return b.sliceBatch(in, b.batch)
}

// sliceBatch returns the part of in that belongs to the given batch.
// Batches have equal size except the last non-empty one, so when
// there are nearly as many batches as items, trailing batches are
// empty.
func (b *batchArgs) sliceBatch(in []string, batch int) []string {
	if b.batches <= 1 {
		return in
	}
	size := (len(in) + b.batches - 1) / b.batches
	start := size * batch
	if start >= len(in) {
		return nil
	}
	end := start + size
	if end > len(in) {
		end = len(in)
	}
	return in[start:end]
}

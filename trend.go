// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"
	"golang.org/x/sync/errgroup"
)

var poissonConfig = &glm.Config{
	Family:    glm.NewFamily(glm.PoissonFamily),
	FitMethod: "IRLS",
	Log:       log.New(io.Discard, "", 0),
}

type trendCoefficient struct {
	Name   string
	Coef   float64
	StdErr float64
	P      float64
}

// distanceTrend fits the Poisson regression cnt ~ 1 + dist.
func distanceTrend(counts map[int]int) (coefs []trendCoefficient, err error) {
	if len(counts) < 2 {
		return nil, fmt.Errorf("need counts for at least 2 distances, have %d", len(counts))
	}
	dists := make([]int, 0, len(counts))
	for d := range counts {
		dists = append(dists, d)
	}
	sort.Ints(dists)
	outcome := make([]statmodel.Dtype, len(dists))
	constants := make([]statmodel.Dtype, len(dists))
	dist := make([]statmodel.Dtype, len(dists))
	for i, d := range dists {
		outcome[i] = statmodel.Dtype(counts[d])
		constants[i] = 1
		dist[i] = statmodel.Dtype(d)
	}
	names := []string{"cnt", "intercept", "dist"}
	dataset := statmodel.NewDataset([][]statmodel.Dtype{outcome, constants, dist}, names)
	model, err := glm.NewGLM(dataset, "cnt", names[1:], poissonConfig)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			// typically "matrix singular or near-singular"
			err = fmt.Errorf("fitting model: %v", r)
		}
	}()
	result := model.Fit()
	params, stderr, pvalues := result.Params(), result.StdErr(), result.PValues()
	for i, name := range names[1:] {
		coefs = append(coefs, trendCoefficient{Name: name, Coef: params[i], StdErr: stderr[i], P: pvalues[i]})
	}
	return coefs, nil
}

// countByDistance counts MNV table records by distance between the
// two variants.
func countByDistance(ctx context.Context, tables []string, passOnly, snvOnly bool, threads int) (map[int]int, error) {
	var mtx sync.Mutex
	total := map[int]int{}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(threads)
	for _, fnm := range tables {
		fnm := fnm
		eg.Go(func() error {
			counts := map[int]int{}
			err := readMNVTable(fnm, func(rec *MNVRecord) error {
				if passOnly && !(rec.Filters.Pass() && rec.PrevFilters.Pass()) {
					return nil
				}
				if snvOnly && (len(rec.Ref) != 1 || len(rec.Alt) != 1 || len(rec.PrevRef) != 1 || len(rec.PrevAlt) != 1) {
					return nil
				}
				counts[rec.Dist]++
				return ctx.Err()
			})
			if err != nil {
				return err
			}
			mtx.Lock()
			defer mtx.Unlock()
			for d, n := range counts {
				total[d] += n
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return total, nil
}

type distanceTrendCmd struct{}

func (cmd *distanceTrendCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	passOnly := flags.Bool("pass", true, "only count MNVs where both variants passed all filters")
	snvOnly := flags.Bool("snv-only", true, "only count MNVs made of two SNVs")
	threads := flags.Int("threads", runtime.NumCPU(), "number of tables to read concurrently")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		err = errors.New("no input tables given")
		return 2
	}
	counts, err := countByDistance(context.Background(), flags.Args(), *passOnly, *snvOnly, *threads)
	if err != nil {
		return 1
	}
	coefs, err := distanceTrend(counts)
	if err != nil {
		return 1
	}
	bufw := bufio.NewWriter(stdout)
	dists := make([]int, 0, len(counts))
	for d := range counts {
		dists = append(dists, d)
	}
	sort.Ints(dists)
	fmt.Fprint(bufw, "dist\tcnt\n")
	for _, d := range dists {
		fmt.Fprintf(bufw, "%d\t%d\n", d, counts[d])
	}
	fmt.Fprint(bufw, "\nterm\tcoef\tstderr\tpvalue\n")
	for _, c := range coefs {
		fmt.Fprintf(bufw, "%s\t%g\t%g\t%g\n", c.Name, c.Coef, c.StdErr, c.P)
	}
	if len(coefs) == 2 {
		fmt.Fprintf(bufw, "\nrate ratio per bp\t%g\n", math.Exp(coefs[1].Coef))
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	return 0
}

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
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// substitutionCount is the number of MNVs with the given combined
// reference and alternate sequences. Bases between the two variants
// are written as N.
type substitutionCount struct {
	Refs string
	Alts string
	Cnt  int
}

type countMatrixOptions struct {
	Regions      *regionSet // nil means no region filter
	PassOnly     bool
	Dist         int
	MinimumCount int
}

// substitutionKey returns the combined refs and alts of an MNV if it
// passes the filters.
func (opts countMatrixOptions) substitutionKey(rec *MNVRecord) (refs, alts string, ok bool) {
	if opts.Regions != nil && !opts.Regions.Contains(rec.Locus) {
		return
	}
	if opts.PassOnly && !(rec.Filters.Pass() && rec.PrevFilters.Pass()) {
		return
	}
	if len(rec.Ref) != 1 || len(rec.Alt) != 1 || len(rec.PrevRef) != 1 || len(rec.PrevAlt) != 1 {
		return
	}
	if rec.Locus.Position-rec.PrevLocus.Position != opts.Dist {
		return
	}
	gap := strings.Repeat("N", opts.Dist-1)
	return rec.PrevRef + gap + rec.Ref, rec.PrevAlt + gap + rec.Alt, true
}

// countSubstitutions reads the given MNV tables concurrently and
// returns the substitution counts, sorted by refs and alts.
func countSubstitutions(ctx context.Context, tables []string, opts countMatrixOptions, threads int) ([]substitutionCount, error) {
	var mtx sync.Mutex
	total := map[[2]string]int{}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(threads)
	for _, fnm := range tables {
		fnm := fnm
		eg.Go(func() error {
			counts := map[[2]string]int{}
			n := 0
			err := readMNVTable(fnm, func(rec *MNVRecord) error {
				if n++; n&0xffff == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				if refs, alts, ok := opts.substitutionKey(rec); ok {
					counts[[2]string{refs, alts}]++
				}
				return nil
			})
			if err != nil {
				return err
			}
			log.Debugf("%s: %d records, %d substitution classes", fnm, n, len(counts))
			mtx.Lock()
			defer mtx.Unlock()
			for k, cnt := range counts {
				total[k] += cnt
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make([]substitutionCount, 0, len(total))
	for k, cnt := range total {
		if opts.MinimumCount > 0 && cnt <= opts.MinimumCount {
			continue
		}
		out = append(out, substitutionCount{Refs: k[0], Alts: k[1], Cnt: cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Refs != out[j].Refs {
			return out[i].Refs < out[j].Refs
		}
		return out[i].Alts < out[j].Alts
	})
	return out, nil
}

// pivotCounts returns a refs x alts matrix, with rows and columns
// sorted and absent combinations filled with zero.
func pivotCounts(counts []substitutionCount) *labeledMatrix {
	rowSet, colSet := map[string]bool{}, map[string]bool{}
	for _, sc := range counts {
		rowSet[sc.Refs] = true
		colSet[sc.Alts] = true
	}
	sortedKeys := func(set map[string]bool) []string {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	m := newLabeledMatrix(sortedKeys(rowSet), sortedKeys(colSet))
	for _, sc := range counts {
		m.Set(m.RowIndex(sc.Refs), m.ColIndex(sc.Alts), m.At(m.RowIndex(sc.Refs), m.ColIndex(sc.Alts))+float64(sc.Cnt))
	}
	return m
}

func writeSubstitutionCounts(w io.Writer, counts []substitutionCount) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprint(bufw, "refs\talts\tcnt\n")
	for _, sc := range counts {
		fmt.Fprintf(bufw, "%s\t%s\t%d\n", sc.Refs, sc.Alts, sc.Cnt)
	}
	return bufw.Flush()
}

type countMatrixCmd struct{}

func (cmd *countMatrixCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	region := flags.String("region", "ALL", "restrict to loci in a BED `file`, or an annotation category name (ALL = no restriction)")
	annotationDir := flags.String("annotation-dir", ".", "`directory` containing {category}.bed files for -region")
	dist := flags.Int("dist", 1, "distance between the two variants")
	minimumCount := flags.Int("minimum-cnt", 0, "drop substitutions seen this many times or fewer (0 = keep all)")
	passOnly := flags.Bool("pass", true, "only count MNVs where both variants passed all filters")
	threads := flags.Int("threads", runtime.NumCPU(), "number of tables to read concurrently")
	outputFilename := flags.String("o", "-", "output `file` for refs/alts/cnt table")
	matrixFilename := flags.String("matrix", "", "also write refs x alts matrix to TSV `file`")
	npyFilename := flags.String("npy", "", "also write refs x alts matrix to numpy `file` (labels go to *.labels.csv)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		err = errors.New("no input tables given")
		return 2
	} else if *dist < 1 {
		err = fmt.Errorf("invalid -dist %d", *dist)
		return 2
	}

	opts := countMatrixOptions{
		PassOnly:     *passOnly,
		Dist:         *dist,
		MinimumCount: *minimumCount,
	}
	if bed := resolveRegion(*region, *annotationDir); bed != "" {
		opts.Regions, err = loadRegions(bed)
		if err != nil {
			return 1
		}
		log.Infof("loaded %d regions from %s", opts.Regions.count, bed)
	}
	counts, err := countSubstitutions(context.Background(), flags.Args(), opts, *threads)
	if err != nil {
		return 1
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.Create(*outputFilename)
		if err != nil {
			return 1
		}
		defer output.Close()
	}
	err = writeSubstitutionCounts(output, counts)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	if *matrixFilename == "" && *npyFilename == "" {
		return 0
	}
	m := pivotCounts(counts)
	if *matrixFilename != "" {
		var f *os.File
		f, err = os.Create(*matrixFilename)
		if err != nil {
			return 1
		}
		defer f.Close()
		err = m.WriteTSV(f, "refs")
		if err != nil {
			return 1
		}
		err = f.Close()
		if err != nil {
			return 1
		}
	}
	if *npyFilename != "" {
		err = m.writeNumpy(*npyFilename)
		if err != nil {
			return 1
		}
	}
	return 0
}

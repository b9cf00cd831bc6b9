// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	log "github.com/sirupsen/logrus"
)

type enrichmentOptions struct {
	Baseline string // column compared against
	Prefix   int    // number of leading row label characters identifying the background row
	Test     string // "fisher" or "chisquare"
}

// densityEnrichment compares each cell of an MNV count matrix with
// the baseline column, relative to the same comparison in a
// background matrix. It returns matrices of p-values and odds ratios
// shaped like mnv. Cells where mnv is NaN are NaN in both.
func densityEnrichment(mnv, bg *labeledMatrix, opts enrichmentOptions) (pvals, ratios *labeledMatrix, err error) {
	if opts.Test != "fisher" && opts.Test != "chisquare" {
		return nil, nil, fmt.Errorf("unknown test %q", opts.Test)
	}
	mBase := mnv.ColIndex(opts.Baseline)
	if mBase < 0 {
		return nil, nil, fmt.Errorf("baseline column %q not found in MNV matrix", opts.Baseline)
	}
	bBase := bg.ColIndex(opts.Baseline)
	if bBase < 0 {
		return nil, nil, fmt.Errorf("baseline column %q not found in background matrix", opts.Baseline)
	}
	bgCol := make([]int, len(mnv.Cols))
	for j, col := range mnv.Cols {
		bgCol[j] = bg.ColIndex(col)
		if bgCol[j] < 0 {
			return nil, nil, fmt.Errorf("column %q not found in background matrix", col)
		}
	}
	pvals = newLabeledMatrix(mnv.Rows, mnv.Cols)
	ratios = newLabeledMatrix(mnv.Rows, mnv.Cols)
	for i, row := range mnv.Rows {
		refs := row
		if len(refs) > opts.Prefix {
			refs = refs[:opts.Prefix]
		}
		bi := bg.RowIndex(refs)
		if bi < 0 {
			return nil, nil, fmt.Errorf("row %q not found in background matrix", refs)
		}
		for j := range mnv.Cols {
			x1 := mnv.At(i, j)
			y1 := mnv.At(i, mBase)
			x2 := bg.At(bi, bgCol[j])
			y2 := bg.At(bi, bBase)
			if math.IsNaN(x1) || math.IsNaN(y1) || math.IsNaN(x2) || math.IsNaN(y2) {
				pvals.Set(i, j, math.NaN())
				ratios.Set(i, j, math.NaN())
				continue
			}
			a, b, c, d := int(math.Round(x1)), int(math.Round(x2)), int(math.Round(y1)), int(math.Round(y2))
			or, p := fisherExact(a, b, c, d)
			if opts.Test == "chisquare" {
				p = chiSquare2x2(a, b, c, d)
			}
			pvals.Set(i, j, p)
			ratios.Set(i, j, or)
			log.Debugf("%s,%s done", row, mnv.Cols[j])
		}
	}
	return pvals, ratios, nil
}

type enrichmentCmd struct{}

func (cmd *enrichmentCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	mnvFilename := flags.String("mnv", "", "MNV count matrix `file` (TSV)")
	bgFilename := flags.String("background", "", "background count matrix `file` (TSV)")
	var opts enrichmentOptions
	flags.StringVar(&opts.Baseline, "baseline", "9", "baseline `column`")
	flags.IntVar(&opts.Prefix, "prefix", 2, "number of leading characters of MNV row labels that name the background row")
	flags.StringVar(&opts.Test, "test", "fisher", "statistical test: fisher or chisquare")
	outputFilename := flags.String("o", "-", "output `file` for p-values")
	ratioFilename := flags.String("odds-ratio", "", "output `file` for odds ratios")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *mnvFilename == "" || *bgFilename == "" {
		err = errors.New("missing required argument: -mnv and -background are both required")
		return 2
	} else if opts.Prefix < 1 {
		err = fmt.Errorf("invalid -prefix %d", opts.Prefix)
		return 2
	}
	mnv, err := loadLabeledMatrix(*mnvFilename)
	if err != nil {
		return 1
	}
	bg, err := loadLabeledMatrix(*bgFilename)
	if err != nil {
		return 1
	}
	pvals, ratios, err := densityEnrichment(mnv, bg, opts)
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
	err = pvals.WriteTSV(output, "refs")
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	if *ratioFilename != "" {
		var f *os.File
		f, err = os.Create(*ratioFilename)
		if err != nil {
			return 1
		}
		defer f.Close()
		err = ratios.WriteTSV(f, "refs")
		if err != nil {
			return 1
		}
		err = f.Close()
		if err != nil {
			return 1
		}
	}
	return 0
}

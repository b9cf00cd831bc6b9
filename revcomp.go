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
)

var complement = map[byte]byte{'A': 'T', 'T': 'A', 'G': 'C', 'C': 'G', 'N': 'N'}

// revComp returns the reverse complement of an A/C/G/T/N sequence.
func revComp(seq string) (string, error) {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		c, ok := complement[seq[i]]
		if !ok {
			return "", fmt.Errorf("cannot complement %q in %q", seq[i], seq)
		}
		out[len(seq)-1-i] = c
	}
	return string(out), nil
}

// collapseRevComp flattens a refs x alts matrix (row-major) and merges
// each substitution with its reverse complement, keeping the first
// of the two. Substitutions with a count of zero are dropped.
func collapseRevComp(m *labeledMatrix) ([]substitutionCount, error) {
	type cell struct {
		refs, alts string
		cnt        float64
		dropped    bool
	}
	cells := make([]cell, 0, len(m.Rows)*len(m.Cols))
	index := map[[2]string]int{}
	for i, refs := range m.Rows {
		for j, alts := range m.Cols {
			cnt := m.At(i, j)
			if math.IsNaN(cnt) {
				cnt = 0
			}
			index[[2]string{refs, alts}] = len(cells)
			cells = append(cells, cell{refs: refs, alts: alts, cnt: cnt})
		}
	}
	for i := range cells {
		if cells[i].dropped {
			continue
		}
		rcRefs, err := revComp(cells[i].refs)
		if err != nil {
			return nil, err
		}
		rcAlts, err := revComp(cells[i].alts)
		if err != nil {
			return nil, err
		}
		k, ok := index[[2]string{rcRefs, rcAlts}]
		if !ok || k == i || cells[k].dropped {
			continue
		}
		cells[i].cnt += cells[k].cnt
		cells[k].dropped = true
	}
	var out []substitutionCount
	for _, c := range cells {
		if !c.dropped && c.cnt > 0 {
			out = append(out, substitutionCount{Refs: c.refs, Alts: c.alts, Cnt: int(math.Round(c.cnt))})
		}
	}
	return out, nil
}

type collapseRevcompCmd struct{}

func (cmd *collapseRevcompCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "refs x alts matrix `file` (TSV, as written by count-matrix -matrix)")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = errors.New("missing required argument: -i")
		return 2
	}
	m, err := loadLabeledMatrix(*inputFilename)
	if err != nil {
		return 1
	}
	counts, err := collapseRevComp(m)
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
	return 0
}

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"
)

var nucleotides = []string{"A", "T", "G", "C"}

// kmers returns all k-mers over A, T, G, C.
func kmers(k int) []string {
	out := []string{""}
	for i := 0; i < k; i++ {
		next := make([]string, 0, len(out)*len(nucleotides))
		for _, prefix := range out {
			for _, n := range nucleotides {
				next = append(next, prefix+n)
			}
		}
		out = next
	}
	return out
}

// maxRepeat returns the largest n such that some k-mer repeated n
// times in tandem occurs in context.
func maxRepeat(context string, k int) (int, error) {
	if k < 1 {
		return 0, fmt.Errorf("invalid k-mer size %d", k)
	}
	best := 0
	for _, unit := range kmers(k) {
		cnt := 0
		for rep := unit; strings.Contains(context, rep); rep += unit {
			cnt++
		}
		if cnt > best {
			best = cnt
		}
	}
	return best, nil
}

type maxRepeatCmd struct{}

func (cmd *maxRepeatCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	k := flags.Int("k", 1, "repeat unit length (1 = homopolymer)")
	inputFilename := flags.String("i", "-", "input `file` with one sequence per line (used if no sequences are given as arguments)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *k < 1 {
		err = fmt.Errorf("invalid -k %d", *k)
		return 2
	}
	report := func(seq string) error {
		n, err := maxRepeat(strings.ToUpper(seq), *k)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "%s\t%d\n", seq, n)
		return err
	}
	if flags.NArg() > 0 {
		for _, seq := range flags.Args() {
			if err = report(seq); err != nil {
				return 1
			}
		}
		return 0
	}
	var input io.ReadCloser
	if *inputFilename == "-" {
		input = io.NopCloser(stdin)
	} else {
		input, err = zopen(*inputFilename)
		if err != nil {
			return 1
		}
	}
	defer input.Close()
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		seq := strings.TrimSpace(scanner.Text())
		if seq == "" {
			continue
		}
		if err = report(seq); err != nil {
			return 1
		}
	}
	if err = scanner.Err(); err != nil {
		return 1
	}
	return 0
}

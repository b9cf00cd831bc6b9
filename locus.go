// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"strconv"
	"strings"
)

type Locus struct {
	Contig   string
	Position int
}

func (l Locus) String() string {
	return fmt.Sprintf("%s:%d", l.Contig, l.Position)
}

func parseLocus(s string) (Locus, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 1 {
		return Locus{}, fmt.Errorf("invalid locus %q", s)
	}
	pos, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Locus{}, fmt.Errorf("invalid locus %q: %w", s, err)
	}
	return Locus{Contig: s[:i], Position: pos}, nil
}

// contigRank orders human contigs 1..22, X, Y, MT, with or without a
// "chr" prefix. Other contigs rank after those, by name.
func contigRank(contig string) int {
	c := strings.TrimPrefix(contig, "chr")
	switch c {
	case "X":
		return 23
	case "Y":
		return 24
	case "M", "MT":
		return 25
	}
	if n, err := strconv.Atoi(c); err == nil && n > 0 && n < 23 {
		return n
	}
	return 1000
}

func sameContig(a, b string) bool {
	return strings.TrimPrefix(a, "chr") == strings.TrimPrefix(b, "chr")
}

// contigAhead reports whether contig a sorts after contig b. Only
// the standard human contigs are comparable.
func contigAhead(a, b string) bool {
	ra, rb := contigRank(a), contigRank(b)
	return ra < 1000 && rb < 1000 && ra > rb
}

// parseChromosomes expands a list like "1-22,X" into chromosome
// labels.
func parseChromosomes(list string) ([]string, error) {
	var chroms []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err1 := strconv.Atoi(lo)
			to, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || from > to {
				return nil, fmt.Errorf("invalid chromosome range %q", part)
			}
			for i := from; i <= to; i++ {
				chroms = append(chroms, strconv.Itoa(i))
			}
			continue
		}
		chroms = append(chroms, part)
	}
	if len(chroms) == 0 {
		return nil, fmt.Errorf("no chromosomes in %q", list)
	}
	return chroms, nil
}

// minRep trims bases shared by ref and alt (suffix first, then
// prefix), keeping at least one base in each, and returns the
// adjusted position.
func minRep(pos int, ref, alt string) (int, string, string) {
	for len(ref) > 1 && len(alt) > 1 && ref[len(ref)-1] == alt[len(alt)-1] {
		ref, alt = ref[:len(ref)-1], alt[:len(alt)-1]
	}
	for len(ref) > 1 && len(alt) > 1 && ref[0] == alt[0] {
		ref, alt = ref[1:], alt[1:]
		pos++
	}
	return pos, ref, alt
}

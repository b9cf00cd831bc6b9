// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"strings"
)

type mnvCategory int

const (
	catHet mnvCategory = iota
	catHomHom
	catPartiallyHom
	nCategories
)

var categoryNames = [nCategories]string{"het", "hom_hom", "partially_hom"}

func (cat mnvCategory) String() string { return categoryNames[cat] }

func parseCategory(s string) (mnvCategory, error) {
	for cat, name := range categoryNames {
		if s == name {
			return mnvCategory(cat), nil
		}
	}
	return 0, fmt.Errorf("unknown MNV category %q (expected het, hom_hom, or partially_hom)", s)
}

// classify returns the zygosity category of one sample's calls at a
// row (cur) and a preceding row (prev), or false if the pair is not
// an MNV.
func classify(cur, prev entry) (mnvCategory, bool) {
	switch {
	case cur.gt.isHomVar() && prev.gt.isHomVar():
		return catHomHom, true
	case cur.gt.isHomVar() && prev.gt.isHetRef(),
		cur.gt.isHetRef() && prev.gt.isHomVar():
		return catPartiallyHom, true
	case cur.gt.phased && prev.gt.phased &&
		cur.phaseID == prev.phaseID &&
		cur.gt == prev.gt &&
		cur.gt.isHetRef() && prev.gt.isHetRef():
		// same phase set and same phased genotype: both
		// alternate alleles are on the same haplotype
		return catHet, true
	}
	return 0, false
}

type pairCounts struct {
	n   [nCategories]int
	adj [nCategories]int
}

// countPairs classifies every sample that has entries at both rows.
func countPairs(cur, prev *siteRow) pairCounts {
	var pc pairCounts
	i, j := 0, 0
	for i < len(cur.entries) && j < len(prev.entries) {
		a, b := cur.entries[i], prev.entries[j]
		if a.sample < b.sample {
			i++
			continue
		} else if a.sample > b.sample {
			j++
			continue
		}
		if cat, ok := classify(a, b); ok {
			pc.n[cat]++
			if a.adj && b.adj {
				pc.adj[cat]++
			}
		}
		i++
		j++
	}
	return pc
}

// windowJoiner pairs each row with the preceding rows on the same
// contig whose position is within window bases. Rows must be added in
// position order.
type windowJoiner struct {
	window int
	emit   func(mnvCategory, *MNVRecord) error
	buf    []*siteRow
	last   Locus
	done   map[string]bool // contigs already left behind
}

func (w *windowJoiner) Add(row *siteRow) error {
	if len(w.buf) > 0 && !sameContig(w.buf[0].Locus.Contig, row.Locus.Contig) {
		w.buf = nil
	}
	if w.last.Contig != "" && !sameContig(w.last.Contig, row.Locus.Contig) {
		if w.done == nil {
			w.done = map[string]bool{}
		}
		w.done[strings.TrimPrefix(w.last.Contig, "chr")] = true
		if w.done[strings.TrimPrefix(row.Locus.Contig, "chr")] {
			return fmt.Errorf("rows out of order: %s after contig %s", row.Locus, w.last.Contig)
		}
	}
	if w.last.Contig != "" && sameContig(w.last.Contig, row.Locus.Contig) && row.Locus.Position < w.last.Position {
		return fmt.Errorf("rows out of order: %s after %s", row.Locus, w.last)
	}
	w.last = row.Locus
	drop := 0
	for drop < len(w.buf) && w.buf[drop].Locus.Position < row.Locus.Position-w.window {
		drop++
	}
	w.buf = w.buf[drop:]
	if len(row.entries) == 0 {
		return nil
	}
	for _, prev := range w.buf {
		if prev.Locus.Position >= row.Locus.Position {
			break
		}
		pc := countPairs(row, prev)
		for cat := mnvCategory(0); cat < nCategories; cat++ {
			if pc.n[cat] == 0 {
				continue
			}
			err := w.emit(cat, newMNVRecord(row, prev, pc.n[cat], pc.adj[cat]))
			if err != nil {
				return err
			}
		}
	}
	w.buf = append(w.buf, row)
	return nil
}

func newMNVRecord(row, prev *siteRow, n, adj int) *MNVRecord {
	return &MNVRecord{
		Locus:       row.Locus,
		Ref:         row.Ref,
		Alt:         row.Alt,
		N:           n,
		FracAdj:     float64(adj) / float64(n),
		Dist:        row.Locus.Position - prev.Locus.Position,
		AF:          row.AF,
		AC:          row.AC,
		Filters:     row.Filters,
		PrevLocus:   prev.Locus,
		PrevRef:     prev.Ref,
		PrevAlt:     prev.Alt,
		PrevFilters: prev.Filters,
		PrevAC:      prev.AC,
		PrevAF:      prev.AF,
	}
}

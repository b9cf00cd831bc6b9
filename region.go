// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arvados/mnv/resource"
	"github.com/biogo/store/interval"
	"github.com/vertgenlab/gonomics/bed"
)

// bedInterval is a half-open BED interval [Start, End) in 0-based
// coordinates.
type bedInterval struct {
	Start, End int
	UID        uintptr
}

func (iv bedInterval) Overlap(b interval.IntRange) bool {
	return iv.Start < b.End && b.Start < iv.End
}

func (iv bedInterval) ID() uintptr { return iv.UID }

func (iv bedInterval) Range() interval.IntRange {
	return interval.IntRange{Start: iv.Start, End: iv.End}
}

// regionSet is a set of genomic regions, indexed by contig (without
// any "chr" prefix).
type regionSet struct {
	trees map[string]*interval.IntTree
	count int
}

// resolveRegion returns the BED file for a -region argument: "ALL"
// (no filter, returns ""), an annotation category name (looked up in
// annotationDir), or a file path.
func resolveRegion(region, annotationDir string) string {
	if region == "" || region == "ALL" {
		return ""
	}
	for _, cat := range resource.AnnotationCategories {
		if region == cat {
			return filepath.Join(annotationDir, cat+".bed")
		}
	}
	return region
}

// loadRegions reads a BED file (optionally gzipped).
func loadRegions(fnm string) (rs *regionSet, err error) {
	if _, err = os.Stat(fnm); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			rs, err = nil, fmt.Errorf("%s: %v", fnm, r)
		}
	}()
	return newRegionSet(bed.Read(fnm))
}

// newRegionSet indexes beds by contig. Empty intervals are skipped.
func newRegionSet(beds []bed.Bed) (*regionSet, error) {
	rs := &regionSet{trees: map[string]*interval.IntTree{}}
	for _, b := range beds {
		if b.ChromEnd <= b.ChromStart {
			continue
		}
		contig := strings.TrimPrefix(b.Chrom, "chr")
		tree := rs.trees[contig]
		if tree == nil {
			tree = &interval.IntTree{}
			rs.trees[contig] = tree
		}
		err := tree.Insert(bedInterval{Start: b.ChromStart, End: b.ChromEnd, UID: uintptr(rs.count)}, true)
		if err != nil {
			return nil, fmt.Errorf("%s:%d-%d: %w", b.Chrom, b.ChromStart, b.ChromEnd, err)
		}
		rs.count++
	}
	for _, tree := range rs.trees {
		tree.AdjustRanges()
	}
	return rs, nil
}

// Contains reports whether the 1-based locus falls in a region.
func (rs *regionSet) Contains(l Locus) bool {
	tree := rs.trees[strings.TrimPrefix(l.Contig, "chr")]
	if tree == nil {
		return false
	}
	return len(tree.Get(bedInterval{Start: l.Position - 1, End: l.Position})) > 0
}

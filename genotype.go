// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"strconv"
	"strings"
)

// genotype is a hard call with up to two alleles. Allele -1 means
// no call. ploidy is 1 or 2; 0 means the call is missing.
type genotype struct {
	a, b   int16
	ploidy uint8
	phased bool
}

// parseGenotype parses a VCF GT string such as "0|1", "1/1", "1" or
// "./.".
func parseGenotype(s string) genotype {
	var gt genotype
	sep := strings.IndexAny(s, "|/")
	if sep < 0 {
		a, ok := parseAllele(s)
		if !ok {
			return genotype{}
		}
		return genotype{a: a, b: -1, ploidy: 1}
	}
	gt.phased = s[sep] == '|'
	a, aok := parseAllele(s[:sep])
	b, bok := parseAllele(s[sep+1:])
	if !aok || !bok {
		return genotype{phased: gt.phased}
	}
	gt.a, gt.b, gt.ploidy = a, b, 2
	return gt
}

func parseAllele(s string) (int16, bool) {
	if s == "" || s == "." {
		return -1, false
	}
	n, err := strconv.ParseInt(s, 10, 16)
	if err != nil || n < 0 {
		return -1, false
	}
	return int16(n), true
}

func genotypeFromIndices(gt []int, phased bool) genotype {
	switch len(gt) {
	case 1:
		if gt[0] < 0 {
			return genotype{}
		}
		return genotype{a: int16(gt[0]), b: -1, ploidy: 1, phased: phased}
	case 2:
		if gt[0] < 0 || gt[1] < 0 {
			return genotype{phased: phased}
		}
		return genotype{a: int16(gt[0]), b: int16(gt[1]), ploidy: 2, phased: phased}
	}
	return genotype{}
}

func (gt genotype) defined() bool { return gt.ploidy > 0 }

// downcode returns the genotype of the biallelic row for alt allele
// index aIndex: that allele becomes 1, every other allele becomes 0.
func (gt genotype) downcode(aIndex int) genotype {
	if !gt.defined() {
		return gt
	}
	dc := func(x int16) int16 {
		if x < 0 {
			return x
		} else if int(x) == aIndex {
			return 1
		}
		return 0
	}
	return genotype{a: dc(gt.a), b: dc(gt.b), ploidy: gt.ploidy, phased: gt.phased}
}

func (gt genotype) isNonRef() bool {
	if !gt.defined() {
		return false
	}
	return gt.a > 0 || (gt.ploidy == 2 && gt.b > 0)
}

// isHetRef means one reference and one non-reference allele.
func (gt genotype) isHetRef() bool {
	return gt.ploidy == 2 && ((gt.a == 0 && gt.b > 0) || (gt.a > 0 && gt.b == 0))
}

func (gt genotype) isHet() bool {
	return gt.ploidy == 2 && gt.a != gt.b
}

func (gt genotype) isHomVar() bool {
	switch gt.ploidy {
	case 1:
		return gt.a > 0
	case 2:
		return gt.a > 0 && gt.a == gt.b
	}
	return false
}

func (gt genotype) String() string {
	al := func(x int16) string {
		if x < 0 {
			return "."
		}
		return strconv.Itoa(int(x))
	}
	switch gt.ploidy {
	case 1:
		return al(gt.a)
	case 2:
		sep := "/"
		if gt.phased {
			sep = "|"
		}
		return al(gt.a) + sep + al(gt.b)
	}
	return "."
}

type adjThresholds struct {
	GQ        int
	DP        int
	HaploidDP int
	AB        float64
}

// isAdj applies the gnomAD "adj" genotype quality criteria. gq, dp
// and altDepth are -1 when unknown, which fails the test.
func (t adjThresholds) isAdj(gt genotype, gq, dp, altDepth int) bool {
	if !gt.defined() || gq < 0 || dp < 0 || gq < t.GQ {
		return false
	}
	if gt.ploidy == 1 {
		return dp >= t.HaploidDP
	}
	if dp < t.DP {
		return false
	}
	if gt.isHet() {
		if altDepth < 0 || dp == 0 {
			return false
		}
		return float64(altDepth)/float64(dp) >= t.AB
	}
	return true
}

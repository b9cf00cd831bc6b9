// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hgvs

import (
	"gopkg.in/check.v1"
)

type mnvSuite struct{}

var _ = check.Suite(&mnvSuite{})

func (s *mnvSuite) TestCombine(c *check.C) {
	v, err := Combine(Variant{Position: 100, Ref: "A", New: "G"}, "", Variant{Position: 101, Ref: "C", New: "T"})
	c.Assert(err, check.IsNil)
	c.Check(v, check.Equals, Variant{Position: 100, Ref: "AC", New: "GT"})
	c.Check(v.String(), check.Equals, "100_101delinsGT")

	v, err = Combine(Variant{Position: 100, Ref: "A", New: "G"}, "NN", Variant{Position: 103, Ref: "C", New: "T"})
	c.Assert(err, check.IsNil)
	c.Check(v.String(), check.Equals, "100_103delinsGNNT")

	_, err = Combine(Variant{Position: 100, Ref: "AAA", New: "A"}, "", Variant{Position: 101, Ref: "C", New: "T"})
	c.Check(err, check.ErrorMatches, `variants overlap.*`)
	_, err = Combine(Variant{Position: 100, Ref: "A", New: "G"}, "N", Variant{Position: 103, Ref: "C", New: "T"})
	c.Check(err, check.ErrorMatches, `gap length 1 .*`)
}

func (s *mnvSuite) TestTrim(c *check.C) {
	v := Variant{Position: 100, Ref: "GAC", New: "GTC"}.Trim()
	c.Check(v.Position, check.Equals, 101)
	c.Check(v.String(), check.Equals, "101A>T")

	// anchored deletion combined with a downstream SNV
	v = Variant{Position: 100, Ref: "GAAC", New: "GC"}.Trim()
	c.Check(v.String(), check.Equals, "101_102del")
}

func (s *mnvSuite) TestComponents(c *check.C) {
	v := Variant{Position: 100, Ref: "ACCCCT", New: "GCCCCA"}
	var names []string
	for _, cv := range v.Components() {
		names = append(names, cv.String())
	}
	c.Check(names, check.DeepEquals, []string{"100A>G", "105T>A"})
	c.Check(Genomic("1", v.Components()...), check.Equals, "1:g.[100A>G;105T>A]")
	c.Check(Genomic("X", Variant{Position: 5, Ref: "AC", New: "GT"}), check.Equals, "X:g.5_6delinsGT")
}

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"encoding/json"
	"os"

	"gopkg.in/check.v1"
)

type statsSuite struct{}

var _ = check.Suite(&statsSuite{})

func (s *statsSuite) TestStats(c *check.C) {
	tables := (&countMatrixSuite{}).writeTables(c)
	var stdout bytes.Buffer
	exited := (&tableStats{}).RunCommand("mnv stats", append([]string{"-local=true"}, tables...), nil, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	var stats []mnvTableStats
	err := json.Unmarshal(stdout.Bytes(), &stats)
	c.Assert(err, check.IsNil)
	c.Assert(stats, check.HasLen, 2)
	c.Check(stats[0], check.DeepEquals, mnvTableStats{
		Table:       "MNV_chr1_het.tsv",
		Records:     5,
		Samples:     5,
		ByDistance:  map[int]int{1: 4, 2: 1},
		PassBoth:    4,
		SNVPairs:    4,
		MeanFracAdj: 0.8,
	})
	c.Check(stats[1].Table, check.Equals, "MNV_chr2_het.gob.gz")
	c.Check(stats[1].Records, check.Equals, 1)
}

func (s *statsSuite) TestDump(c *check.C) {
	tables := (&countMatrixSuite{}).writeTables(c)
	var stdout bytes.Buffer
	exited := (&dumpTable{}).RunCommand("mnv dump", []string{"-local=true", "-i", tables[1]}, nil, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals,
		"locus\tref\talt\tn\tfrac_adj\tdist\tAF\tAC\tfilters\tprev_locus\tprev_ref\tprev_alt\tprev_filters\tprev_AC\tprev_AF\thgvs\n"+
			"chr2:101\tG\tA\t1\t1\t1\t0.01\t1\tPASS\tchr2:100\tT\tC\tPASS\t1\t0.01\tNA\n")

	out := c.MkDir() + "/passing.tsv.gz"
	exited = (&dumpTable{}).RunCommand("mnv dump", []string{"-local=true", "-pass", "-i", tables[0], "-o", out}, nil, &stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	recs, err := loadMNVTable(out)
	c.Check(err, check.IsNil)
	c.Check(recs, check.HasLen, 4)

	exited = (&dumpTable{}).RunCommand("mnv dump", []string{"-local=true"}, nil, &stdout, os.Stderr)
	c.Check(exited, check.Equals, 2)
}

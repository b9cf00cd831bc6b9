// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"math"
	"strings"

	"gopkg.in/check.v1"
)

type matrixSuite struct{}

var _ = check.Suite(&matrixSuite{})

func (s *matrixSuite) TestReadWrite(c *check.C) {
	m, err := readLabeledMatrix(strings.NewReader("refs\tCC\tGG\nAA\t4\t\nTT\tNaN\t0.5\n"))
	c.Assert(err, check.IsNil)
	c.Check(m.Rows, check.DeepEquals, []string{"AA", "TT"})
	c.Check(m.Cols, check.DeepEquals, []string{"CC", "GG"})
	c.Check(m.At(0, 0), check.Equals, 4.0)
	c.Check(math.IsNaN(m.At(0, 1)), check.Equals, true)
	c.Check(math.IsNaN(m.At(1, 0)), check.Equals, true)
	c.Check(m.RowIndex("TT"), check.Equals, 1)
	c.Check(m.ColIndex("AA"), check.Equals, -1)

	var buf bytes.Buffer
	c.Check(m.WriteTSV(&buf, "x"), check.IsNil)
	c.Check(buf.String(), check.Equals, "x\tCC\tGG\nAA\t4\tNA\nTT\tNA\t0.5\n")
}

func (s *matrixSuite) TestEmpty(c *check.C) {
	m, err := readLabeledMatrix(strings.NewReader("refs\tCC\n"))
	c.Assert(err, check.IsNil)
	c.Check(m.Data, check.IsNil)
	var buf bytes.Buffer
	c.Check(m.WriteTSV(&buf, "refs"), check.IsNil)
	c.Check(buf.String(), check.Equals, "refs\tCC\n")

	_, err = readLabeledMatrix(strings.NewReader(""))
	c.Check(err, check.ErrorMatches, `empty file, no header row`)
	_, err = readLabeledMatrix(strings.NewReader("refs\tCC\nAA\t1\t2\n"))
	c.Check(err, check.ErrorMatches, `line 2: expected 2 fields, found 3`)
	_, err = readLabeledMatrix(strings.NewReader("refs\tCC\nAA\tx\n"))
	c.Check(err, check.ErrorMatches, `line 2: .*invalid syntax`)
}

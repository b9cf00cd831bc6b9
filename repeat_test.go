// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type repeatSuite struct{}

var _ = check.Suite(&repeatSuite{})

func (s *repeatSuite) TestKmers(c *check.C) {
	c.Check(kmers(1), check.DeepEquals, []string{"A", "T", "G", "C"})
	c.Check(kmers(3), check.HasLen, 64)
	c.Check(kmers(0), check.DeepEquals, []string{""})
}

func (s *repeatSuite) TestMaxRepeat(c *check.C) {
	for _, trial := range []struct {
		context string
		k       int
		n       int
	}{
		{"GGGTTTTAC", 1, 4},
		{"ACGT", 1, 1},
		{"ACACACGTGT", 2, 3},
		{"ACACACGTGT", 1, 1},
		{"AGCAGCAGCAGT", 3, 3},
		{"NNNN", 1, 0},
		{"", 2, 0},
	} {
		n, err := maxRepeat(trial.context, trial.k)
		c.Check(err, check.IsNil)
		c.Check(n, check.Equals, trial.n, check.Commentf("%+v", trial))
	}
	_, err := maxRepeat("ACGT", 0)
	c.Check(err, check.NotNil)
}

func (s *repeatSuite) TestCommand(c *check.C) {
	var stdout bytes.Buffer
	exited := (&maxRepeatCmd{}).RunCommand("mnv max-repeat", []string{"-k", "2", "acacac", "GTGA"}, nil, &stdout, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "acacac\t3\nGTGA\t1\n")

	stdout.Reset()
	exited = (&maxRepeatCmd{}).RunCommand("mnv max-repeat", nil, strings.NewReader("AAAA\n\nCCGTT\n"), &stdout, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(stdout.String(), check.Equals, "AAAA\t4\nCCGTT\t2\n")

	exited = (&maxRepeatCmd{}).RunCommand("mnv max-repeat", []string{"-k", "0", "AAAA"}, nil, &stdout, os.Stderr)
	c.Check(exited, check.Equals, 2)
}

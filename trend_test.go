// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"context"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type trendSuite struct{}

var _ = check.Suite(&trendSuite{})

func (s *trendSuite) TestDistanceTrend(c *check.C) {
	coefs, err := distanceTrend(map[int]int{1: 1000, 2: 600, 3: 370, 4: 220, 5: 135, 6: 80})
	c.Assert(err, check.IsNil)
	c.Assert(coefs, check.HasLen, 2)
	c.Check(coefs[0].Name, check.Equals, "intercept")
	c.Check(coefs[1].Name, check.Equals, "dist")
	c.Check(coefs[1].Coef < -0.4, check.Equals, true, check.Commentf("%+v", coefs[1]))
	c.Check(coefs[1].Coef > -0.6, check.Equals, true, check.Commentf("%+v", coefs[1]))
	c.Check(coefs[1].P < 1e-6, check.Equals, true, check.Commentf("%+v", coefs[1]))

	_, err = distanceTrend(map[int]int{1: 10})
	c.Check(err, check.ErrorMatches, `need counts for at least 2 distances, have 1`)
}

func (s *trendSuite) TestCountByDistance(c *check.C) {
	tables := (&countMatrixSuite{}).writeTables(c)
	counts, err := countByDistance(context.Background(), tables, true, true, 2)
	c.Check(err, check.IsNil)
	c.Check(counts, check.DeepEquals, map[int]int{1: 3, 2: 1})
	counts, err = countByDistance(context.Background(), tables, false, true, 2)
	c.Check(err, check.IsNil)
	c.Check(counts, check.DeepEquals, map[int]int{1: 4, 2: 1})
	counts, err = countByDistance(context.Background(), tables, true, false, 2)
	c.Check(err, check.IsNil)
	c.Check(counts, check.DeepEquals, map[int]int{1: 4, 2: 1})
}

func (s *trendSuite) TestCommand(c *check.C) {
	tables := (&countMatrixSuite{}).writeTables(c)
	var stdout bytes.Buffer
	exited := (&distanceTrendCmd{}).RunCommand("mnv distance-trend", append([]string{"-pass=false"}, tables...), nil, &stdout, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(strings.HasPrefix(stdout.String(), "dist\tcnt\n1\t4\n2\t1\n\nterm\tcoef\tstderr\tpvalue\nintercept\t"), check.Equals, true, check.Commentf("%s", stdout.String()))

	exited = (&distanceTrendCmd{}).RunCommand("mnv distance-trend", nil, nil, &stdout, os.Stderr)
	c.Check(exited, check.Equals, 2)
}

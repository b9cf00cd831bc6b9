// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

// chiSquare2x2 returns the Pearson chi-square p-value (1 degree of
// freedom, no continuity correction) for the 2x2 table
// [[a, b], [c, d]]. Tables with an empty row or column get p=1.
func chiSquare2x2(a, b, c, d int) float64 {
	obs := [4]float64{float64(a), float64(b), float64(c), float64(d)}
	row := [2]float64{obs[0] + obs[1], obs[2] + obs[3]}
	col := [2]float64{obs[0] + obs[2], obs[1] + obs[3]}
	sz := row[0] + row[1]
	if row[0] == 0 || row[1] == 0 || col[0] == 0 || col[1] == 0 {
		return 1
	}
	var sum float64
	for i := range obs {
		exp := row[i/2] * col[i%2] / sz
		diff := obs[i] - exp
		sum += diff * diff / exp
	}
	return 1 - chisquared.CDF(sum)
}

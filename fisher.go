// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// Probabilities within this relative distance of the observed table's
// probability count as "as extreme" in the two-sided test.
const fisherRelErr = 1 + 1e-7

// fisherExact performs Fisher's exact test on the 2x2 table
// [[a, b], [c, d]] and returns the sample odds ratio a*d/(b*c) and
// the two-sided p-value.
func fisherExact(a, b, c, d int) (oddsRatio, p float64) {
	if a+b == 0 || c+d == 0 || a+c == 0 || b+d == 0 {
		return math.NaN(), 1
	}
	if b > 0 && c > 0 {
		oddsRatio = float64(a) * float64(d) / (float64(b) * float64(c))
	} else {
		oddsRatio = math.Inf(1)
	}

	n := a + b + c + d
	row1, col1 := a+b, a+c
	logDenom := combin.LogGeneralizedBinomial(float64(n), float64(col1))
	logPMF := func(x int) float64 {
		return combin.LogGeneralizedBinomial(float64(row1), float64(x)) +
			combin.LogGeneralizedBinomial(float64(n-row1), float64(col1-x)) -
			logDenom
	}
	lo := col1 - (n - row1)
	if lo < 0 {
		lo = 0
	}
	hi := row1
	if col1 < hi {
		hi = col1
	}
	observed := math.Exp(logPMF(a))
	for x := lo; x <= hi; x++ {
		if px := math.Exp(logPMF(x)); px <= observed*fisherRelErr {
			p += px
		}
	}
	if p > 1 {
		p = 1
	}
	return oddsRatio, p
}

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hgvs

import (
	"fmt"
	"strings"
)

// Combine merges two variants on the same sequence into a single
// variant spanning both. gap must be the reference bases between the
// end of first.Ref and second.Position.
func Combine(first Variant, gap string, second Variant) (Variant, error) {
	end := first.Position + len(first.Ref)
	if second.Position < end {
		return Variant{}, fmt.Errorf("variants overlap: %d..%d and %d", first.Position, end-1, second.Position)
	} else if end+len(gap) != second.Position {
		return Variant{}, fmt.Errorf("gap length %d does not span %d..%d", len(gap), end, second.Position-1)
	}
	return Variant{
		Position: first.Position,
		Ref:      first.Ref + gap + second.Ref,
		New:      first.New + gap + second.New,
	}, nil
}

// Trim removes bases shared by the end, then the start, of Ref and
// New, advancing Position past the removed leading bases.
func (v Variant) Trim() Variant {
	for len(v.Ref) > 0 && len(v.New) > 0 && v.Ref[len(v.Ref)-1] == v.New[len(v.New)-1] {
		v.Ref, v.New = v.Ref[:len(v.Ref)-1], v.New[:len(v.New)-1]
	}
	for len(v.Ref) > 0 && len(v.New) > 0 && v.Ref[0] == v.New[0] {
		v.Left = v.Ref[:1]
		v.Ref, v.New = v.Ref[1:], v.New[1:]
		v.Position++
	}
	return v
}

// Components splits v into its minimal component changes.
func (v Variant) Components() []Variant {
	diffs, _ := Diff(strings.ToUpper(v.Ref), strings.ToUpper(v.New), 0)
	for i := range diffs {
		diffs[i].Position += v.Position - 1
	}
	return diffs
}

// Genomic returns the HGVS genomic name of the given variants on
// contig, e.g. "1:g.100_101delinsGT" or "1:g.[100A>G;102C>T]".
func Genomic(contig string, vs ...Variant) string {
	switch len(vs) {
	case 0:
		return contig + ":g.="
	case 1:
		return contig + ":g." + vs[0].String()
	}
	names := make([]string, len(vs))
	for i := range vs {
		names[i] = vs[i].String()
	}
	return contig + ":g.[" + strings.Join(names, ";") + "]"
}

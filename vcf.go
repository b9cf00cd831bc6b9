// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/brentp/vcfgo"
	"github.com/cheggaaa/pb/v3"
	log "github.com/sirupsen/logrus"
)

// Filters is the filter set of a site. A site that does not appear in
// the filter table has no filter set at all (Defined is false), which
// is different from a site that passed every filter.
type Filters struct {
	Defined bool
	Names   []string
}

func (f Filters) Pass() bool { return f.Defined && len(f.Names) == 0 }

func (f Filters) String() string {
	if !f.Defined {
		return "."
	} else if len(f.Names) == 0 {
		return "PASS"
	}
	return strings.Join(f.Names, ";")
}

// parseFilters is the inverse of String.
func parseFilters(s string) Filters {
	switch s {
	case ".", "", "NA":
		return Filters{}
	case "PASS":
		return Filters{Defined: true}
	}
	return Filters{Defined: true, Names: strings.Split(s, ";")}
}

// vcfFilters interprets a VCF FILTER column, where "." means filters
// were not applied, so the site has no filter set.
func vcfFilters(s string) Filters {
	switch s {
	case ".", "":
		return Filters{}
	case "PASS":
		return Filters{Defined: true}
	}
	return Filters{Defined: true, Names: strings.Split(s, ";")}
}

// entry is one sample's call at a biallelic row. Only non-reference
// calls with a phase id are kept.
type entry struct {
	sample  int32
	gt      genotype
	phaseID string
	adj     bool
}

// siteRow is one biallelic row of a (possibly multiallelic) VCF
// record.
type siteRow struct {
	Locus   Locus
	Ref     string
	Alt     string
	AIndex  int
	AF      float64 // NaN if missing
	AC      int     // -1 if missing
	Filters Filters
	entries []entry // ascending by sample
}

type entryOptions struct {
	PhaseField string // FORMAT field holding the phase set id
	GTField    string // FORMAT field holding the phased genotype
	Adj        adjThresholds
}

type rowReader interface {
	Next() (*siteRow, error)
	Close() error
}

// vcfRowReader splits VCF records into biallelic rows and returns
// them in position order. Trimming alleles to their minimal
// representation can move a row past the next record, so rows are
// held back until no later record can precede them.
type vcfRowReader struct {
	filename    string
	rdr         *vcfgo.Reader
	closer      io.Closer
	withEntries bool
	opts        entryOptions
	sampleIdx   []int32 // VCF sample column -> output sample index, or -1
	sampleNames []string
	pending     []*siteRow
	ready       []*siteRow
	lastRecord  Locus
	doneContigs map[string]bool
	eof         bool
}

// openVCFRows opens a VCF file. If withEntries is false, sample
// columns are not parsed. If keep is non-nil, only samples for which
// it returns true get entries.
func openVCFRows(filename string, withEntries bool, opts entryOptions, keep func(string) bool, bar *pb.ProgressBar) (*vcfRowReader, error) {
	f, err := zopenProgress(filename, bar)
	if err != nil {
		return nil, err
	}
	rdr, err := vcfgo.NewReader(f, !withEntries)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	r := &vcfRowReader{
		filename:    filename,
		rdr:         rdr,
		closer:      f,
		withEntries: withEntries,
		opts:        opts,
	}
	if r.opts.PhaseField == "" {
		r.opts.PhaseField = "PID"
	}
	if r.opts.GTField == "" {
		r.opts.GTField = "GT"
	}
	if withEntries {
		for _, name := range rdr.Header.SampleNames {
			if keep != nil && !keep(name) {
				r.sampleIdx = append(r.sampleIdx, -1)
				continue
			}
			r.sampleIdx = append(r.sampleIdx, int32(len(r.sampleNames)))
			r.sampleNames = append(r.sampleNames, name)
		}
	}
	return r, nil
}

func (r *vcfRowReader) SampleNames() []string { return r.sampleNames }

func (r *vcfRowReader) Close() error { return r.closer.Close() }

// Next returns the next row, or io.EOF.
func (r *vcfRowReader) Next() (*siteRow, error) {
	for len(r.ready) == 0 {
		if r.eof {
			if len(r.pending) == 0 {
				return nil, io.EOF
			}
			r.ready, r.pending = r.pending, nil
			break
		}
		v := r.rdr.Read()
		if v == nil {
			r.eof = true
			continue
		}
		if err := r.rdr.Error(); err != nil {
			// vcfgo accumulates parse errors for malformed
			// fields; the record itself is still usable.
			log.Debugf("%s: %s:%d: %s", r.filename, v.Chromosome, v.Pos, err)
			r.rdr.Clear()
		}
		rec := Locus{Contig: v.Chromosome, Position: int(v.Pos)}
		if r.lastRecord.Contig != "" {
			if !sameContig(rec.Contig, r.lastRecord.Contig) {
				if r.doneContigs == nil {
					r.doneContigs = map[string]bool{}
				}
				r.doneContigs[strings.TrimPrefix(r.lastRecord.Contig, "chr")] = true
				if r.doneContigs[strings.TrimPrefix(rec.Contig, "chr")] {
					return nil, fmt.Errorf("%s: input is not sorted: %s after contig %s", r.filename, rec, r.lastRecord.Contig)
				}
				r.ready, r.pending = r.pending, nil
			} else if rec.Position < r.lastRecord.Position {
				return nil, fmt.Errorf("%s: input is not sorted: %s after %s", r.filename, rec, r.lastRecord)
			} else {
				n := 0
				for n < len(r.pending) && r.pending[n].Locus.Position < rec.Position {
					n++
				}
				r.ready = append(r.ready, r.pending[:n]...)
				r.pending = append([]*siteRow(nil), r.pending[n:]...)
			}
		}
		r.lastRecord = rec
		r.pending = append(r.pending, r.split(v)...)
		sort.SliceStable(r.pending, func(i, j int) bool {
			return r.pending[i].Locus.Position < r.pending[j].Locus.Position
		})
	}
	row := r.ready[0]
	r.ready = r.ready[1:]
	return row, nil
}

func (r *vcfRowReader) split(v *vcfgo.Variant) []*siteRow {
	rows := make([]*siteRow, 0, len(v.Alternate))
	info := v.Info()
	af, _ := info.Get("AF")
	ac, _ := info.Get("AC")
	filters := vcfFilters(v.Filter)
	for i, alt := range v.Alternate {
		if alt == "*" || alt == "." || alt == "" {
			continue
		}
		pos, ref, alt := minRep(int(v.Pos), v.Reference, alt)
		row := &siteRow{
			Locus:   Locus{Contig: v.Chromosome, Position: pos},
			Ref:     ref,
			Alt:     alt,
			AIndex:  i + 1,
			AF:      math.NaN(),
			AC:      -1,
			Filters: filters,
		}
		if x, ok := infoFloat(af, i); ok {
			row.AF = x
		}
		if x, ok := infoFloat(ac, i); ok {
			row.AC = int(x)
		}
		if r.withEntries {
			row.entries = r.entries(v, row.AIndex)
		}
		rows = append(rows, row)
	}
	return rows
}

// infoFloat returns element i of a per-allele INFO value.
func infoFloat(val interface{}, i int) (float64, bool) {
	switch val := val.(type) {
	case []float32:
		if i < len(val) {
			return float32To64(val[i]), true
		}
	case []float64:
		if i < len(val) {
			return val[i], true
		}
	case []int:
		if i < len(val) {
			return float64(val[i]), true
		}
	case []interface{}:
		if i < len(val) {
			return infoFloat(val[i], 0)
		}
	case float32:
		if i == 0 {
			return float32To64(val), true
		}
	case float64:
		if i == 0 {
			return val, true
		}
	case int:
		if i == 0 {
			return float64(val), true
		}
	case string:
		fields := strings.Split(val, ",")
		if i < len(fields) {
			x, err := strconv.ParseFloat(fields[i], 64)
			return x, err == nil
		}
	}
	return 0, false
}

// float32To64 converts x to the float64 nearest its shortest decimal
// representation, so 0.1f becomes 0.1 rather than 0.10000000149.
func float32To64(x float32) float64 {
	f, _ := strconv.ParseFloat(strconv.FormatFloat(float64(x), 'g', -1, 32), 64)
	return f
}

func (r *vcfRowReader) entries(v *vcfgo.Variant, aIndex int) []entry {
	var out []entry
	for col, s := range v.Samples {
		if s == nil || col >= len(r.sampleIdx) || r.sampleIdx[col] < 0 {
			continue
		}
		gt := r.genotype(s).downcode(aIndex)
		if !gt.isNonRef() {
			continue
		}
		pid := s.Fields[r.opts.PhaseField]
		if pid == "" || pid == "." {
			continue
		}
		out = append(out, entry{
			sample:  r.sampleIdx[col],
			gt:      gt,
			phaseID: pid,
			adj:     r.opts.Adj.isAdj(gt, sampleInt(s, v.Format, "GQ", s.GQ), sampleInt(s, v.Format, "DP", s.DP), alleleDepth(s, aIndex)),
		})
	}
	return out
}

func (r *vcfRowReader) genotype(s *vcfgo.SampleGenotype) genotype {
	if r.opts.GTField != "GT" {
		if gt := parseGenotype(s.Fields[r.opts.GTField]); gt.defined() {
			return gt
		}
	}
	return genotypeFromIndices(s.GT, s.Phased)
}

// sampleInt returns an integer FORMAT field, or -1 if it is missing.
// vcfgo keeps some standard fields only in SampleGenotype, in which
// case parsed is used.
func sampleInt(s *vcfgo.SampleGenotype, format []string, key string, parsed int) int {
	if str, ok := s.Fields[key]; ok {
		x, err := strconv.Atoi(str)
		if err != nil {
			return -1
		}
		return x
	}
	for _, f := range format {
		if f == key {
			return parsed
		}
	}
	return -1
}

func alleleDepth(s *vcfgo.SampleGenotype, aIndex int) int {
	ad := strings.Split(s.Fields["AD"], ",")
	if aIndex >= len(ad) {
		return -1
	}
	x, err := strconv.Atoi(ad[aIndex])
	if err != nil {
		return -1
	}
	return x
}

// siteFilterCursor looks up the filter set of each row in a sorted
// sites table. Lookups must arrive in the table's sort order.
type siteFilterCursor struct {
	src    rowReader
	peeked *siteRow
	here   Locus
	atHere []*siteRow
	eof    bool
}

func newSiteFilterCursor(src rowReader) *siteFilterCursor {
	return &siteFilterCursor{src: src}
}

func (c *siteFilterCursor) peek() (*siteRow, error) {
	if c.peeked == nil && !c.eof {
		row, err := c.src.Next()
		if err == io.EOF {
			c.eof = true
			return nil, nil
		} else if err != nil {
			return nil, err
		}
		c.peeked = row
	}
	return c.peeked, nil
}

// Lookup returns the filter set of the given site, or undefined
// Filters if the table has no such site.
func (c *siteFilterCursor) Lookup(locus Locus, ref, alt string) (Filters, error) {
	if locus != c.here {
		if err := c.seek(locus); err != nil {
			return Filters{}, err
		}
	}
	for _, row := range c.atHere {
		if row.Ref == ref && row.Alt == alt {
			return row.Filters, nil
		}
	}
	return Filters{}, nil
}

func (c *siteFilterCursor) seek(locus Locus) error {
	c.here = locus
	c.atHere = c.atHere[:0]
	for {
		row, err := c.peek()
		if err != nil || row == nil {
			return err
		}
		if !sameContig(row.Locus.Contig, locus.Contig) {
			if contigAhead(row.Locus.Contig, locus.Contig) {
				return nil
			}
		} else if row.Locus.Position > locus.Position {
			return nil
		} else if row.Locus.Position == locus.Position {
			c.atHere = append(c.atHere, row)
		}
		c.peeked = nil
	}
}

func (c *siteFilterCursor) Close() error { return c.src.Close() }

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MNVRecord is one row of an MNV table: a pair of variants (Prev*
// upstream) observed together in N samples.
type MNVRecord struct {
	Locus       Locus
	Ref         string
	Alt         string
	N           int
	FracAdj     float64
	Dist        int
	AF          float64 // NaN if missing
	AC          int     // -1 if missing
	Filters     Filters
	PrevLocus   Locus
	PrevRef     string
	PrevAlt     string
	PrevFilters Filters
	PrevAC      int
	PrevAF      float64
	HGVS        string
}

var tsvColumns = []string{"locus", "ref", "alt", "n", "frac_adj", "dist", "AF", "AC", "filters", "prev_locus", "prev_ref", "prev_alt", "prev_filters", "prev_AC", "prev_AF"}

type mnvWriter interface {
	Write(*MNVRecord) error
	Close() error
}

var tableExtensions = []string{"tsv", "tsv.gz", "gob", "gob.gz"}

func checkTableFormat(format string) error {
	for _, ext := range tableExtensions {
		if format == ext {
			return nil
		}
	}
	return fmt.Errorf("unsupported table format %q (expected one of %s)", format, strings.Join(tableExtensions, ", "))
}

func isGobTable(fnm string) bool {
	return strings.HasSuffix(fnm, ".gob") || strings.HasSuffix(fnm, ".gob.gz")
}

// createMNVTable creates an MNV table. The format (TSV or gob, with
// optional gzip) is determined by the filename suffix.
func createMNVTable(fnm string, withHGVS bool) (mnvWriter, error) {
	w, err := zcreate(fnm)
	if err != nil {
		return nil, err
	}
	if isGobTable(fnm) {
		return newGobMNVWriter(w), nil
	}
	return newTSVMNVWriter(w, withHGVS), nil
}

// newTSVMNVWriter returns a writer that writes the header row before
// the first record, or on Close if there are no records.
func newTSVMNVWriter(w io.WriteCloser, withHGVS bool) *tsvMNVWriter {
	return &tsvMNVWriter{w: w, bufw: bufio.NewWriterSize(w, 1<<20), withHGVS: withHGVS}
}

type tsvMNVWriter struct {
	w             io.WriteCloser
	bufw          *bufio.Writer
	withHGVS      bool
	headerWritten bool
}

func (tw *tsvMNVWriter) writeHeader() error {
	if tw.headerWritten {
		return nil
	}
	tw.headerWritten = true
	header := strings.Join(tsvColumns, "\t")
	if tw.withHGVS {
		header += "\thgvs"
	}
	_, err := tw.bufw.WriteString(header + "\n")
	return err
}

func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return "NA"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func formatCount(x int) string {
	if x < 0 {
		return "NA"
	}
	return strconv.Itoa(x)
}

func (tw *tsvMNVWriter) Write(rec *MNVRecord) error {
	if err := tw.writeHeader(); err != nil {
		return err
	}
	fields := []string{
		rec.Locus.String(),
		rec.Ref,
		rec.Alt,
		strconv.Itoa(rec.N),
		formatFloat(rec.FracAdj),
		strconv.Itoa(rec.Dist),
		formatFloat(rec.AF),
		formatCount(rec.AC),
		rec.Filters.String(),
		rec.PrevLocus.String(),
		rec.PrevRef,
		rec.PrevAlt,
		rec.PrevFilters.String(),
		formatCount(rec.PrevAC),
		formatFloat(rec.PrevAF),
	}
	if tw.withHGVS {
		hgvs := rec.HGVS
		if hgvs == "" {
			hgvs = "NA"
		}
		fields = append(fields, hgvs)
	}
	_, err := tw.bufw.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

func (tw *tsvMNVWriter) Close() error {
	err := tw.writeHeader()
	if err == nil {
		err = tw.bufw.Flush()
	}
	if err != nil {
		tw.w.Close()
		return err
	}
	return tw.w.Close()
}

// readMNVTable calls fn for each record in the given table, in file
// order.
func readMNVTable(fnm string, fn func(*MNVRecord) error) error {
	rdr, err := zopen(fnm)
	if err != nil {
		return err
	}
	defer rdr.Close()
	if isGobTable(fnm) {
		err = readGobMNVTable(rdr, fn)
	} else {
		err = readTSVMNVTable(rdr, fn)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	return nil
}

func loadMNVTable(fnm string) ([]MNVRecord, error) {
	var recs []MNVRecord
	err := readMNVTable(fnm, func(rec *MNVRecord) error {
		recs = append(recs, *rec)
		return nil
	})
	return recs, err
}

func readTSVMNVTable(rdr io.Reader, fn func(*MNVRecord) error) error {
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<26)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return errors.New("empty file, no header row")
	}
	col := map[string]int{}
	for i, name := range strings.Split(scanner.Text(), "\t") {
		col[name] = i
	}
	for _, name := range tsvColumns {
		if _, ok := col[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}
	hgvsCol, withHGVS := col["hgvs"]
	for line := 2; scanner.Scan(); line++ {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < len(col) {
			return fmt.Errorf("line %d: expected %d fields, found %d", line, len(col), len(fields))
		}
		p := tsvFieldParser{fields: fields, col: col}
		rec := MNVRecord{
			Locus:       p.locus("locus"),
			Ref:         fields[col["ref"]],
			Alt:         fields[col["alt"]],
			N:           p.count("n"),
			FracAdj:     p.float("frac_adj"),
			Dist:        p.count("dist"),
			AF:          p.float("AF"),
			AC:          p.count("AC"),
			Filters:     parseFilters(fields[col["filters"]]),
			PrevLocus:   p.locus("prev_locus"),
			PrevRef:     fields[col["prev_ref"]],
			PrevAlt:     fields[col["prev_alt"]],
			PrevFilters: parseFilters(fields[col["prev_filters"]]),
			PrevAC:      p.count("prev_AC"),
			PrevAF:      p.float("prev_AF"),
		}
		if withHGVS && fields[hgvsCol] != "NA" {
			rec.HGVS = fields[hgvsCol]
		}
		if p.err != nil {
			return fmt.Errorf("line %d: %w", line, p.err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// tsvFieldParser remembers the first parse error so a row can be
// decoded without checking every field.
type tsvFieldParser struct {
	fields []string
	col    map[string]int
	err    error
}

func (p *tsvFieldParser) float(name string) float64 {
	s := p.fields[p.col[name]]
	if s == "NA" {
		return math.NaN()
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return x
}

func (p *tsvFieldParser) count(name string) int {
	s := p.fields[p.col[name]]
	if s == "NA" {
		return -1
	}
	x, err := strconv.Atoi(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return x
}

func (p *tsvFieldParser) locus(name string) Locus {
	l, err := parseLocus(p.fields[p.col[name]])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", name, err)
	}
	return l
}

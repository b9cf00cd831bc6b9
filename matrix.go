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
	"os"
	"strconv"
	"strings"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// labeledMatrix is a dense matrix with row and column labels, e.g.,
// combined refs x combined alts.
type labeledMatrix struct {
	Rows []string
	Cols []string
	Data *mat.Dense // nil if there are no rows or no columns
}

func newLabeledMatrix(rows, cols []string) *labeledMatrix {
	m := &labeledMatrix{Rows: rows, Cols: cols}
	if len(rows) > 0 && len(cols) > 0 {
		m.Data = mat.NewDense(len(rows), len(cols), nil)
	}
	return m
}

func (m *labeledMatrix) At(i, j int) float64 { return m.Data.At(i, j) }

func (m *labeledMatrix) Set(i, j int, x float64) { m.Data.Set(i, j, x) }

func indexOf(labels []string, label string) int {
	for i, l := range labels {
		if l == label {
			return i
		}
	}
	return -1
}

func (m *labeledMatrix) RowIndex(label string) int { return indexOf(m.Rows, label) }

func (m *labeledMatrix) ColIndex(label string) int { return indexOf(m.Cols, label) }

// WriteTSV writes the matrix with a header row. Missing values are
// written as "NA".
func (m *labeledMatrix) WriteTSV(w io.Writer, corner string) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprintf(bufw, "%s\t%s\n", corner, strings.Join(m.Cols, "\t"))
	for i, row := range m.Rows {
		bufw.WriteString(row)
		for j := range m.Cols {
			bufw.WriteByte('\t')
			bufw.WriteString(formatFloat(m.At(i, j)))
		}
		bufw.WriteByte('\n')
	}
	return bufw.Flush()
}

func loadLabeledMatrix(fnm string) (*labeledMatrix, error) {
	rdr, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	m, err := readLabeledMatrix(rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return m, nil
}

// readLabeledMatrix reads a TSV matrix as written by WriteTSV. Empty,
// "NA" and "NaN" cells are missing (NaN).
func readLabeledMatrix(rdr io.Reader) (*labeledMatrix, error) {
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("empty file, no header row")
	}
	header := strings.Split(scanner.Text(), "\t")
	cols := header[1:]
	var rows []string
	var data []float64
	for line := 2; scanner.Scan(); line++ {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, found %d", line, len(header), len(fields))
		}
		rows = append(rows, fields[0])
		for _, f := range fields[1:] {
			switch f {
			case "", "NA", "NaN", "nan":
				data = append(data, math.NaN())
				continue
			}
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			data = append(data, x)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	m := &labeledMatrix{Rows: rows, Cols: cols}
	if len(rows) > 0 && len(cols) > 0 {
		m.Data = mat.NewDense(len(rows), len(cols), data)
	}
	return m, nil
}

// writeNumpy writes the matrix data to fnm (float64, row-major) and
// the row and column labels to a CSV file alongside.
func (m *labeledMatrix) writeNumpy(fnm string) error {
	output, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriterSize(output, 1<<20)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	rows, cols := len(m.Rows), len(m.Cols)
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, m.At(i, j))
		}
	}
	log.WithFields(log.Fields{
		"filename": fnm,
		"rows":     rows,
		"cols":     cols,
	}).Infof("writing numpy: %s", fnm)
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(data)
	if err != nil {
		return err
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	err = output.Close()
	if err != nil {
		return err
	}
	return m.writeLabels(strings.TrimSuffix(fnm, ".npy") + ".labels.csv")
}

func (m *labeledMatrix) writeLabels(fnm string) error {
	output, err := os.Create(fnm)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	for i, label := range m.Rows {
		fmt.Fprintf(bufw, "row,%d,%q\n", i, label)
	}
	for j, label := range m.Cols {
		fmt.Fprintf(bufw, "col,%d,%q\n", j, label)
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arvados/mnv/resource"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	log "github.com/sirupsen/logrus"
)

var (
	metaSummaryColumns = []string{
		"age", "sex", "hard_filters", "perm_filters", "pop_platform_filters", "related",
		"data_type", "product", "product_simplified", "qc_platform",
		"project_id", "project_description", "internal", "investigator",
		"known_pop", "known_subpop", "pop", "subpop",
		"neuro", "control", "high_quality", "release",
	}
	metaGenomeColumns = []string{"pcr_free", "project_name", "release_2_0_2"}
	metaExomeColumns  = []string{"diabetes", "exac_joint", "tcga"}
)

// sampleMeta is a sample metadata table keyed by column "s".
type sampleMeta struct {
	df dataframe.DataFrame
}

// loadSampleMeta reads a metadata TSV. Unless full is true, only the
// summary columns (plus the data type specific ones) are kept.
func loadSampleMeta(fnm string, dataType resource.DataType, full bool) (*sampleMeta, error) {
	rdr, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer rdr.Close()
	meta, err := readSampleMeta(rdr, dataType, full)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return meta, nil
}

func readSampleMeta(rdr io.Reader, dataType resource.DataType, full bool) (*sampleMeta, error) {
	df := dataframe.ReadCSV(rdr,
		dataframe.WithDelimiter('\t'),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return nil, df.Err
	}
	have := map[string]bool{}
	for _, name := range df.Names() {
		have[name] = true
	}
	if !have["s"] {
		return nil, errors.New("no sample id column \"s\"")
	}
	if !full {
		want := append([]string(nil), metaSummaryColumns...)
		switch dataType {
		case resource.Genomes:
			want = append(want, metaGenomeColumns...)
		case resource.Exomes:
			want = append(want, metaExomeColumns...)
		}
		cols := []string{"s"}
		for _, name := range want {
			if have[name] {
				cols = append(cols, name)
			} else {
				log.Warnf("metadata has no %q column", name)
			}
		}
		df = df.Select(cols)
		if df.Err != nil {
			return nil, df.Err
		}
	}
	return &sampleMeta{df: df}, nil
}

func (meta *sampleMeta) Nrow() int { return meta.df.Nrow() }

func (meta *sampleMeta) Names() []string { return meta.df.Names() }

func metaTrue(s string) bool {
	return strings.EqualFold(s, "true")
}

// ReleaseSamples returns the set of samples whose release flag is
// true.
func (meta *sampleMeta) ReleaseSamples() (map[string]bool, error) {
	rel := meta.df.Filter(dataframe.F{Colname: "release", Comparator: series.CompFunc, Comparando: func(el series.Element) bool {
		return metaTrue(el.String())
	}})
	if rel.Err != nil {
		return nil, fmt.Errorf("selecting release samples: %w", rel.Err)
	}
	set := map[string]bool{}
	for _, s := range rel.Col("s").Records() {
		set[s] = true
	}
	return set, nil
}

// CountBy returns the number of samples for each value of the given
// column.
func (meta *sampleMeta) CountBy(col string) (map[string]int, error) {
	ser := meta.df.Col(col)
	if ser.Err != nil {
		return nil, ser.Err
	}
	counts := map[string]int{}
	for _, v := range ser.Records() {
		counts[v]++
	}
	return counts, nil
}

// WriteTSV writes the table with a header row.
func (meta *sampleMeta) WriteTSV(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	for _, rec := range meta.df.Records() {
		_, err := bufw.WriteString(strings.Join(rec, "\t") + "\n")
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

type metaCmd struct{}

func (cmd *metaCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "", "sample metadata `file` (TSV, optionally gzipped)")
	dataTypeName := flags.String("data-type", string(resource.Genomes), "data type: genomes or exomes")
	full := flags.Bool("full", false, "keep all columns (default: summary columns only)")
	releaseSamples := flags.Bool("release-samples", false, "print IDs of release samples only")
	countBy := flags.String("count-by", "", "print number of samples for each value of `column`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if *inputFilename == "" {
		err = errors.New("missing required argument: -i")
		return 2
	}
	dataType, err := resource.ParseDataType(*dataTypeName)
	if err != nil {
		return 2
	}
	meta, err := loadSampleMeta(*inputFilename, dataType, *full)
	if err != nil {
		return 1
	}
	log.Infof("%s: %d samples, %d columns", *inputFilename, meta.Nrow(), len(meta.Names()))
	switch {
	case *releaseSamples:
		var set map[string]bool
		set, err = meta.ReleaseSamples()
		if err != nil {
			return 1
		}
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(stdout, strings.Join(ids, "\n"))
	case *countBy != "":
		var counts map[string]int
		counts, err = meta.CountBy(*countBy)
		if err != nil {
			return 1
		}
		values := make([]string, 0, len(counts))
		for v := range counts {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			fmt.Fprintf(stdout, "%s\t%d\n", v, counts[v])
		}
	default:
		err = meta.WriteTSV(stdout)
		if err != nil {
			return 1
		}
	}
	return 0
}

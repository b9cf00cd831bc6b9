// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

type tableStats struct{}

// mnvTableStats summarizes one MNV table.
type mnvTableStats struct {
	Table          string
	Records        int
	Samples        int         // sum of n
	ByDistance     map[int]int // records by distance
	PassBoth       int         // records where both variants passed all filters
	MissingFilters int         // records where either variant has no filter set
	SNVPairs       int
	MeanFracAdj    float64
}

func (cmd *tableStats) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	runlocal := flags.Bool("local", false, "run on local host (default: run in an arvados container)")
	projectUUID := flags.String("project", "", "project `UUID` for output data")
	priority := flags.Int("priority", 500, "container request priority")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		err = errors.New("no input tables given")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	if !*runlocal {
		if *outputFilename != "-" {
			err = errors.New("cannot specify output file in container mode: not implemented")
			return 1
		}
		var cfg Config
		cfg, err = loadConfig()
		if err != nil {
			return 1
		}
		runner := newContainerRunner(cfg, "mnv stats", *projectUUID, *priority)
		runner.RAM = 4000000000
		runner.VCPUs = 1
		tables := flags.Args()
		var ptrs []*string
		for i := range tables {
			ptrs = append(ptrs, &tables[i])
		}
		err = runner.TranslatePaths(ptrs...)
		if err != nil {
			return 1
		}
		runner.Args = append([]string{"stats", "-local=true", "-o", "/mnt/output/stats.json"}, tables...)
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/stats.json")
		return 0
	}

	var output io.WriteCloser
	if *outputFilename == "-" {
		output = nopCloser{stdout}
	} else {
		output, err = os.OpenFile(*outputFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0777)
		if err != nil {
			return 1
		}
		defer output.Close()
	}

	var ret []mnvTableStats
	for _, fnm := range flags.Args() {
		var st mnvTableStats
		st, err = summarizeMNVTable(fnm)
		if err != nil {
			return 1
		}
		ret = append(ret, st)
	}
	bufw := bufio.NewWriter(output)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	err = enc.Encode(ret)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func summarizeMNVTable(fnm string) (mnvTableStats, error) {
	st := mnvTableStats{Table: filepath.Base(fnm), ByDistance: map[int]int{}}
	var sumFracAdj float64
	var nFracAdj int
	err := readMNVTable(fnm, func(rec *MNVRecord) error {
		st.Records++
		st.Samples += rec.N
		st.ByDistance[rec.Dist]++
		if rec.Filters.Pass() && rec.PrevFilters.Pass() {
			st.PassBoth++
		}
		if !rec.Filters.Defined || !rec.PrevFilters.Defined {
			st.MissingFilters++
		}
		if len(rec.Ref) == 1 && len(rec.Alt) == 1 && len(rec.PrevRef) == 1 && len(rec.PrevAlt) == 1 {
			st.SNVPairs++
		}
		if !math.IsNaN(rec.FracAdj) {
			sumFracAdj += rec.FracAdj
			nFracAdj++
		}
		return nil
	})
	if nFracAdj > 0 {
		st.MeanFracAdj = sumFracAdj / float64(nFracAdj)
	}
	return st, err
}

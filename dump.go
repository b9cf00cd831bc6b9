// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// dumpTable copies an MNV table to TSV on stdout, or to another
// table format.
type dumpTable struct{}

func (cmd *dumpTable) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	inputFilename := flags.String("i", "", "input MNV table `file`")
	outputFilename := flags.String("o", "-", "output `file` (format is determined by suffix; \"-\" means TSV on stdout)")
	passOnly := flags.Bool("pass", false, "only copy MNVs where both variants passed all filters")
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

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	if !*runlocal {
		if *outputFilename == "-" {
			err = errors.New("must specify output file in container mode")
			return 2
		}
		var cfg Config
		cfg, err = loadConfig()
		if err != nil {
			return 1
		}
		runner := newContainerRunner(cfg, "mnv dump", *projectUUID, *priority)
		runner.RAM = 4000000000
		runner.VCPUs = 1
		err = runner.TranslatePaths(inputFilename)
		if err != nil {
			return 1
		}
		base := filepath.Base(*outputFilename)
		runner.Args = []string{"dump", "-local=true", fmt.Sprintf("-pprof=%v", *pprof), fmt.Sprintf("-pass=%v", *passOnly), "-i", *inputFilename, "-o", "/mnt/output/" + base}
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/"+base)
		return 0
	}

	var w mnvWriter
	if *outputFilename == "-" {
		w = newTSVMNVWriter(nopCloser{stdout}, true)
	} else {
		w, err = createMNVTable(*outputFilename, true)
		if err != nil {
			return 1
		}
	}
	var n, skipped int
	err = readMNVTable(*inputFilename, func(rec *MNVRecord) error {
		if *passOnly && !(rec.Filters.Pass() && rec.PrevFilters.Pass()) {
			skipped++
			return nil
		}
		n++
		return w.Write(rec)
	})
	if err != nil {
		w.Close()
		return 1
	}
	err = w.Close()
	if err != nil {
		return 1
	}
	log.Infof("%s: copied %d records, skipped %d", *inputFilename, n, skipped)
	return 0
}

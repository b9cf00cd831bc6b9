// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"flag"
	"fmt"
	"io"

	"github.com/arvados/mnv/resource"
)

type pathsCmd struct{}

func (cmd *pathsCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cfg, err := loadConfig()
	if err != nil {
		return 1
	}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	list := flags.Bool("list", false, "list resource names")
	var opts resource.Options
	dataType := flags.String("data-type", "", "data type: genomes or exomes")
	flags.BoolVar(&opts.Split, "split", true, "split multiallelic sites")
	flags.StringVar(&opts.Version, "version", "", "release, metadata, fam, or duplicate list version (default depends on resource)")
	flags.StringVar(&opts.HailVersion, "hail-version", cfg.HailVersion, "hail version")
	flags.StringVar(&opts.AnnotationType, "annotation-type", "", "annotation type, for annotations and sample-annotations")
	flags.BoolVar(&opts.ByPopulation, "by-population", false, "coverage-ht by population")
	flags.BoolVar(&opts.ByPlatform, "by-platform", false, "coverage-ht by platform")
	flags.BoolVar(&opts.TrueTrios, "true-trios", false, "fam: true trios only")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *list {
		for _, name := range resource.Names() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}
	if flags.NArg() == 0 {
		err = fmt.Errorf("usage: %s [options] resource-name [...] (see -list)", prog)
		return 2
	}
	opts.DataType = resource.DataType(*dataType)
	for _, name := range flags.Args() {
		o := opts
		if o.Version == "" {
			o.Version = defaultVersion(cfg, name, o.DataType)
		}
		var p string
		p, err = resource.Lookup(name, o)
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, p)
	}
	return 0
}

// defaultVersion returns the configured version for resources whose
// version is a date or release number.
func defaultVersion(cfg Config, name string, dataType resource.DataType) string {
	switch name {
	case "meta", "meta-tsv":
		if dataType == resource.Exomes {
			return cfg.ExomeMeta
		}
		return cfg.GenomeMeta
	case "fam":
		return cfg.Fam
	case "duplicate-ids":
		return cfg.Dups
	}
	return cfg.Release
}

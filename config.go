// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds site-wide defaults. Every field can be overridden by
// the named environment variable; command line flags override both.
type Config struct {
	Release     string `envconfig:"MNV_RELEASE" default:"2.0.2"`
	HailVersion string `envconfig:"MNV_HAIL_VERSION" default:"0.2"`
	GenomeMeta  string `envconfig:"MNV_GENOME_META" default:"2018-09-12"`
	ExomeMeta   string `envconfig:"MNV_EXOME_META" default:"2018-09-12"`
	Fam         string `envconfig:"MNV_FAM" default:"2018-04-12"`
	Dups        string `envconfig:"MNV_DUPS" default:"2017-10-04"`

	OutputDir string `envconfig:"MNV_OUTPUT_DIR" default:"./out"`
	Window    int    `envconfig:"MNV_WINDOW" default:"10"`

	// MNV_ADJ_GQ, MNV_ADJ_DP, etc.
	Adj struct {
		GQ        int     `envconfig:"GQ" default:"20"`
		DP        int     `envconfig:"DP" default:"10"`
		HaploidDP int     `envconfig:"HAPLOID_DP" default:"5"`
		AB        float64 `envconfig:"AB" default:"0.2"`
	} `envconfig:"MNV_ADJ"`

	// Resources for Arvados containers: MNV_CONTAINER_IMAGE,
	// MNV_CONTAINER_RAM, etc.
	Container struct {
		Image     string `envconfig:"IMAGE" default:"mnv-runtime"`
		RAM       int64  `envconfig:"RAM" default:"64000000000"`
		VCPUs     int    `envconfig:"VCPUS" default:"16"`
		KeepCache int    `envconfig:"KEEP_CACHE" default:"2"`
	} `envconfig:"MNV_CONTAINER"`
}

func loadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

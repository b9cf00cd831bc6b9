// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package resource builds the storage URIs of versioned gnomAD
// dataset releases and the reference resources used alongside them.
package resource

import (
	"fmt"
	"strings"
)

const (
	CurrentHailVersion = "0.2"
	CurrentRelease     = "2.0.2"
	CurrentGenomeMeta  = "2018-09-12" // YYYY-MM-DD
	CurrentExomeMeta   = "2018-09-12"
	CurrentFam         = "2018-04-12"
	CurrentDups        = "2017-10-04"
)

var (
	Releases = []string{"2.0.1", "2.0.2"}

	GenomePops = []string{"AFR", "AMR", "ASJ", "EAS", "FIN", "NFE", "OTH"}
	ExomePops  = []string{"AFR", "AMR", "ASJ", "EAS", "FIN", "NFE", "OTH", "SAS"}
	ExACPops   = []string{"AFR", "AMR", "EAS", "FIN", "NFE", "OTH", "SAS"}
)

// DataType is "exomes" or "genomes".
type DataType string

const (
	Exomes  DataType = "exomes"
	Genomes DataType = "genomes"
)

// DataError reports a request for a dataset that does not exist.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return e.Msg }

func dataErrorf(format string, args ...interface{}) error {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

// ParseDataType returns an error unless s is "exomes" or "genomes".
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case Exomes, Genomes:
		return DataType(s), nil
	}
	return "", dataErrorf("Select data_type as one of 'genomes' or 'exomes'")
}

func unsplit(split bool) string {
	if split {
		return ""
	}
	return ".unsplit"
}

func isRelease(version string) bool {
	for _, r := range Releases {
		if r == version {
			return true
		}
	}
	return false
}

func PublicExomesMT(split bool, version string) string {
	return fmt.Sprintf("gs://gnomad-public/release/%[1]s/mt/exomes/gnomad.exomes.r%[1]s.sites%[2]s.mt", version, unsplit(split))
}

func PublicGenomesMT(split bool, version string) string {
	return fmt.Sprintf("gs://gnomad-public/release/%[1]s/mt/genomes/gnomad.genomes.r%[1]s.sites%[2]s.mt", version, unsplit(split))
}

// PublicData returns the public release sites MT for the given data
// type and release version.
func PublicData(dataType DataType, split bool, version string) (string, error) {
	if !isRelease(version) {
		return "", dataErrorf("Select version as one of: %s", strings.Join(Releases, ","))
	}
	switch dataType {
	case Exomes:
		return PublicExomesMT(split, version), nil
	case Genomes:
		return PublicGenomesMT(split, version), nil
	}
	return "", dataErrorf("Select data_type as one of 'genomes' or 'exomes'")
}

// DataOptions selects one of the non-public matrix tables.
type DataOptions struct {
	Hardcalls   bool
	Split       bool
	NonRefsOnly bool
	HailVersion string
}

// Data returns the path of the hardcalls, non-ref-only, or raw matrix
// table for dataType.
func Data(dataType DataType, opts DataOptions) (string, error) {
	if opts.Hardcalls && opts.NonRefsOnly {
		return "", dataErrorf("No dataset with hardcalls and non_refs_only")
	}
	if dataType != Exomes && dataType != Genomes {
		return "", dataErrorf("Select data_type as one of 'genomes' or 'exomes'")
	}
	hv := opts.HailVersion
	if hv == "" {
		hv = CurrentHailVersion
	}
	switch {
	case opts.Hardcalls:
		return HardcallsMT(dataType, opts.Split, hv), nil
	case opts.NonRefsOnly:
		return NonRefsOnlyMT(dataType, opts.Split), nil
	case dataType == Exomes:
		return RawExomesMT(hv), nil
	default:
		return RawGenomesMT(hv), nil
	}
}

// Meta returns the sample metadata table for dataType. An empty
// version selects the current one.
func Meta(dataType DataType, version string) (string, error) {
	switch dataType {
	case Exomes:
		if version == "" {
			version = CurrentExomeMeta
		}
		return MetadataExomesHT(version), nil
	case Genomes:
		if version == "" {
			version = CurrentGenomeMeta
		}
		return MetadataGenomesHT(version), nil
	}
	return "", dataErrorf("Select data_type as one of 'genomes' or 'exomes'")
}

// RawExomesMT is unsplit, with no special handling of sex chromosomes.
func RawExomesMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/raw/hail-%s/mt/exomes/gnomad.exomes.mt", hailVersion)
}

// RawGenomesMT is unsplit, with no special handling of sex chromosomes.
func RawGenomesMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/raw/hail-%s/mt/genomes/gnomad.genomes.mt", hailVersion)
}

func RawExACMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/raw/hail-%s/mt/exac/exac.mt", hailVersion)
}

func ExACReleaseSitesMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/raw/hail-%s/mt/exac/exac.r1.sites.vep.mt", hailVersion)
}

func HardcallsMT(dataType DataType, split bool, hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/hardcalls/hail-%[1]s/mt/%[2]s/gnomad.%[2]s%[3]s.mt", hailVersion, dataType, unsplit(split))
}

func NonRefsOnlyMT(dataType DataType, split bool) string {
	return fmt.Sprintf("gs://gnomad/non_refs_only/hail-0.2/mt/%[1]s/gnomad.%[1]s%[2]s.mt", dataType, unsplit(split))
}

func PBTPhasedTriosMT(dataType DataType, split bool, hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/hardcalls/hail-%[1]s/mt/%[2]s/gnomad.%[2]s.trios.pbt_phased%[3]s.mt", hailVersion, dataType, unsplit(split))
}

// AnnotationsHT returns a sites-level annotation table. annotationType
// is one of vep, qc_stats, frequencies, rf, omes_concordance,
// NA12878_concordance, syndip_concordance, omes_by_platform_concordance.
func AnnotationsHT(dataType DataType, annotationType, hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/annotations/hail-%[1]s/ht/%[2]s/gnomad.%[2]s.%[3]s.ht", hailVersion, dataType, annotationType)
}

// SampleAnnotationsHT returns a samples-level annotation table.
// annotationType is one of family_stats, downsampling,
// omes_concordance, NA12878_concordance, syndip_concordance.
func SampleAnnotationsHT(dataType DataType, annotationType, hailVersion string) string {
	return fmt.Sprintf("gs://gnomad/annotations/hail-%[1]s/sample_tables/%[2]s/gnomad.%[2]s.%[3]s.ht", hailVersion, dataType, annotationType)
}

const GnomadPCAMT = "gs://gnomad-genomes/sampleqc/gnomad.pca.mt"

// PublicPCAMT holds the sites and loadings from the gnomAD PCA.
func PublicPCAMT(version string) string {
	return fmt.Sprintf("gs://gnomad-public/release/%s/pca/gnomad_pca_loadings.mt", version)
}

func MetadataGenomesTSV(version string) string {
	return fmt.Sprintf("gs://gnomad/metadata/genomes/gnomad.genomes.metadata.%s.tsv.bgz", version)
}

func MetadataExomesTSV(version string) string {
	return fmt.Sprintf("gs://gnomad/metadata/exomes/gnomad.exomes.metadata.%s.tsv.bgz", version)
}

func MetadataGenomesHT(version string) string {
	return fmt.Sprintf("gs://gnomad/metadata/genomes/gnomad.genomes.metadata.%s.ht", version)
}

func MetadataExomesHT(version string) string {
	return fmt.Sprintf("gs://gnomad/metadata/exomes/gnomad.exomes.metadata.%s.ht", version)
}

func CoverageMT(dataType DataType) string {
	return fmt.Sprintf("gs://gnomad/coverage/hail-0.2/coverage/%[1]s/mt/gnomad.%[1]s.coverage.mt", dataType)
}

// CoverageHT returns the coverage summary, optionally broken down by
// population or by platform (not both).
func CoverageHT(dataType DataType, byPopulation, byPlatform bool) (string, error) {
	if byPopulation && byPlatform {
		return "", dataErrorf("Cannot assess coverage by both population and platform... yet...")
	}
	by := ""
	if byPopulation {
		by = ".population"
	} else if byPlatform {
		by = ".platform"
	}
	return fmt.Sprintf("gs://gnomad/coverage/hail-0.2/coverage/%[1]s/ht/gnomad.%[1]s.coverage%[2]s.summary.ht", dataType, by), nil
}

func Fam(dataType DataType, version string, trueTrios bool) string {
	if trueTrios {
		return fmt.Sprintf("gs://gnomad/metadata/%[1]s/gnomad.%[1]s.%[2]s.true_trios.fam", dataType, version)
	}
	return fmt.Sprintf("gs://gnomad/metadata/%[1]s/gnomad.%[1]s.%[2]s.fam", dataType, version)
}

func GenomesExomesDuplicateIDsTSV(version string) string {
	return fmt.Sprintf("gs://gnomad/metadata/join/gnomad.genomes_exomes.%s.duplicate_ids.tsv", version)
}

func OmniMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/1000G_omni2.5.b37.mt", hailVersion)
}

func MillsMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/Mills_and_1000G_gold_standard.indels.b37.mt", hailVersion)
}

func HapmapMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/hapmap_3.3.b37.mt", hailVersion)
}

func KGPHighConfSNVsMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/1000G_phase1.snps.high_confidence.b37.mt", hailVersion)
}

// KGPPhase3GenotypesMT is 1000 Genomes Phase 3 with genotypes (b37).
func KGPPhase3GenotypesMT(split bool, hailVersion string) string {
	suffix := ""
	if split {
		suffix = ".split"
	}
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/1000Genomes_phase3_shapeit2_mvncall_integrated_v5a.20130502.genotypes%s.mt", hailVersion, suffix)
}

func NA12878MT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/NA12878_GIAB_highconf_CG-IllFB-IllGATKHC-Ion-Solid-10X_CHROM1-X_v3.3_highconf.mt", hailVersion)
}

func SyndipMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/truth-sets/hail-%s/hybrid.m37m.mt", hailVersion)
}

func CpGSitesMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-public/resources/hail-%s/cpg.mt", hailVersion)
}

func MethylationSitesMT(hailVersion string) string {
	return fmt.Sprintf("gs://gnomad-resources/methylation/hail-%s/methylation.ht", hailVersion)
}

func QCMT(dataType DataType) string {
	return fmt.Sprintf("gs://gnomad/sample_qc/mt/gnomad.%s.high_callrate_common_biallelic_snps.mt", dataType)
}

func QCHT(dataType DataType) string {
	return fmt.Sprintf("gs://gnomad/sample_qc/ht/gnomad.%s.high_callrate_common_biallelic_snps.ht", dataType)
}

func QCTempDataPrefix(dataType DataType) string {
	return fmt.Sprintf("gs://gnomad/sample_qc/temp/%[1]s/gnomad.%[1]s", dataType)
}

func QCMeta(dataType DataType) string {
	if dataType == Exomes {
		return "gs://gnomad/sample_qc/input_meta/gnomad.exomes.streamlined_metadata.2018-03-21.txt.bgz"
	}
	return "gs://gnomad/sample_qc/input_meta/gnomad.genomes.streamlined_metadata.2018-03-21.txt.bgz"
}

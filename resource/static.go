// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package resource

import "sort"

const (
	DbSNPVCF = "gs://gnomad-public/truth-sets/source/All_20180423.vcf.bgz"
	DbSNPHT  = "gs://gnomad-public/truth-sets/source/All_20180423.ht"

	NA12878HighConfRegionsBED      = "gs://gnomad-public/truth-sets/source/NA12878_GIAB_highconf_CG-IllFB-IllGATKHC-Ion-Solid-10X_CHROM1-X_v3.3_highconf.bed"
	NA12878HighConfExomeRegionsBED = "gs://gnomad-public/truth-sets/source/union13callableMQonlymerged_addcert_nouncert_excludesimplerep_excludesegdups_excludedecoy_excludeRepSeqSTRs_noCNVs_v2.18_2mindatasets_5minYesNoRatio.bed"
	SyndipHighConfRegionsBED       = "gs://gnomad-public/truth-sets/source/hybrid.m37m.bed"
	ClinvarTSV                     = "gs://gnomad-resources/clinvar/source/clinvar_alleles.single.b37.tsv.bgz"
	ClinvarMT                      = "gs://gnomad-resources/clinvar/hail-0.2/clinvar_alleles.single.b37.vep.mt"

	LCRIntervals       = "gs://gnomad-public/intervals/LCR.GRCh37_compliant.interval_list"
	DecoyIntervals     = "gs://gnomad-public/intervals/mm-2-merged.GRCh37_compliant.bed"
	Purcell5kIntervals = "gs://gnomad-public/intervals/purcell5k.interval_list"
	SegdupIntervals    = "gs://gnomad-public/intervals/hg19_self_chain_split_both.bed"

	ExomesHighConfRegionsIntervals = "gs://gnomad-public/intervals/exomes_high_coverage.auto.interval_list"
	ExomeCallingIntervals          = "gs://gnomad-public/intervals/exome_calling_regions.v1.interval_list"
	EvaluationIntervals            = "gs://gnomad-public/intervals/exome_evaluation_regions.v1.noheader.interval_list"
	HighCoverageIntervals          = "gs://gnomad-public/intervals/high_coverage.auto.interval_list"

	GenomeEvaluationIntervals     = "gs://gnomad-public/intervals/hg19-v0-wgs_evaluation_regions.v1.interval_list"
	GenomeEvaluationIntervalsHg38 = "gs://gnomad-public/intervals/hg38-v0-wgs_evaluation_regions.hg38.interval_list"

	VEPConfig = "gs://hail-common/vep/vep/vep85-gcloud.json"
	ContextMT = "gs://gnomad-resources/constraint/context_processed.mt"

	// LowCoverageRegionsBED covers sites with mean coverage <= 15x.
	LowCoverageRegionsBED = "gs://gnomad-qingbowang/MNV/cov_leq15_reg.bed"
)

// AnnotationCategories name the functional annotation BED files that
// count-matrix accepts as region filters.
var AnnotationCategories = []string{
	"Coding_UCSC", "DHS_Trynka", "Enhancer_Hoffman", "H3K27ac_PGC2", "H3K4me1_Trynka", "H3K4me3_Trynka",
	"H3K9ac_Trynka", "Intron_UCSC", "TSS_Hoffman",
	"Promoter_UCSC", "Transcribed_Hoffman", "UTR_3_UCSC", "UTR_5_UCSC", "TFBS_ENCODE",
}

// Options carries every parameter a named resource might need.
type Options struct {
	DataType       DataType
	Split          bool
	Version        string // release, metadata date, fam date or dups date
	HailVersion    string
	AnnotationType string
	ByPopulation   bool
	ByPlatform     bool
	TrueTrios      bool
}

type builder func(Options) (string, error)

func constant(s string) builder {
	return func(Options) (string, error) { return s, nil }
}

func needType(fn func(o Options) string) builder {
	return func(o Options) (string, error) {
		if _, err := ParseDataType(string(o.DataType)); err != nil {
			return "", err
		}
		return fn(o), nil
	}
}

var named = map[string]builder{
	"public-data": func(o Options) (string, error) { return PublicData(o.DataType, o.Split, o.Version) },
	"hardcalls": func(o Options) (string, error) {
		return Data(o.DataType, DataOptions{Hardcalls: true, Split: o.Split, HailVersion: o.HailVersion})
	},
	"non-refs-only": func(o Options) (string, error) {
		return Data(o.DataType, DataOptions{NonRefsOnly: true, Split: o.Split, HailVersion: o.HailVersion})
	},
	"raw":      func(o Options) (string, error) { return Data(o.DataType, DataOptions{HailVersion: o.HailVersion}) },
	"meta":     func(o Options) (string, error) { return Meta(o.DataType, o.Version) },
	"meta-tsv": needType(func(o Options) string {
		if o.DataType == Exomes {
			return MetadataExomesTSV(o.Version)
		}
		return MetadataGenomesTSV(o.Version)
	}),
	"raw-exac":           func(o Options) (string, error) { return RawExACMT(o.HailVersion), nil },
	"exac-release-sites": func(o Options) (string, error) { return ExACReleaseSitesMT(o.HailVersion), nil },
	"pbt-phased-trios":   needType(func(o Options) string { return PBTPhasedTriosMT(o.DataType, o.Split, o.HailVersion) }),
	"annotations":        needType(func(o Options) string { return AnnotationsHT(o.DataType, o.AnnotationType, o.HailVersion) }),
	"sample-annotations": needType(func(o Options) string { return SampleAnnotationsHT(o.DataType, o.AnnotationType, o.HailVersion) }),
	"pca":                constant(GnomadPCAMT),
	"public-pca":         func(o Options) (string, error) { return PublicPCAMT(o.Version), nil },
	"coverage-mt":        needType(func(o Options) string { return CoverageMT(o.DataType) }),
	"coverage-ht": func(o Options) (string, error) {
		if _, err := ParseDataType(string(o.DataType)); err != nil {
			return "", err
		}
		return CoverageHT(o.DataType, o.ByPopulation, o.ByPlatform)
	},
	"fam":                needType(func(o Options) string { return Fam(o.DataType, o.Version, o.TrueTrios) }),
	"duplicate-ids":      func(o Options) (string, error) { return GenomesExomesDuplicateIDsTSV(o.Version), nil },
	"omni":               func(o Options) (string, error) { return OmniMT(o.HailVersion), nil },
	"mills":              func(o Options) (string, error) { return MillsMT(o.HailVersion), nil },
	"hapmap":             func(o Options) (string, error) { return HapmapMT(o.HailVersion), nil },
	"kgp-high-conf-snvs": func(o Options) (string, error) { return KGPHighConfSNVsMT(o.HailVersion), nil },
	"kgp-phase3":         func(o Options) (string, error) { return KGPPhase3GenotypesMT(o.Split, o.HailVersion), nil },
	"na12878":            func(o Options) (string, error) { return NA12878MT(o.HailVersion), nil },
	"syndip":             func(o Options) (string, error) { return SyndipMT(o.HailVersion), nil },
	"cpg-sites":          func(o Options) (string, error) { return CpGSitesMT(o.HailVersion), nil },
	"methylation-sites":  func(o Options) (string, error) { return MethylationSitesMT(o.HailVersion), nil },
	"qc-mt":              needType(func(o Options) string { return QCMT(o.DataType) }),
	"qc-ht":              needType(func(o Options) string { return QCHT(o.DataType) }),
	"qc-temp-prefix":     needType(func(o Options) string { return QCTempDataPrefix(o.DataType) }),
	"qc-meta":            needType(func(o Options) string { return QCMeta(o.DataType) }),

	"dbsnp-vcf":                      constant(DbSNPVCF),
	"dbsnp-ht":                       constant(DbSNPHT),
	"na12878-high-conf-regions":      constant(NA12878HighConfRegionsBED),
	"na12878-high-conf-exome-regions": constant(NA12878HighConfExomeRegionsBED),
	"syndip-high-conf-regions":       constant(SyndipHighConfRegionsBED),
	"clinvar-tsv":                    constant(ClinvarTSV),
	"clinvar-mt":                     constant(ClinvarMT),
	"lcr-intervals":                  constant(LCRIntervals),
	"decoy-intervals":                constant(DecoyIntervals),
	"purcell5k-intervals":            constant(Purcell5kIntervals),
	"segdup-intervals":               constant(SegdupIntervals),
	"exomes-high-conf-intervals":     constant(ExomesHighConfRegionsIntervals),
	"exome-calling-intervals":        constant(ExomeCallingIntervals),
	"evaluation-intervals":           constant(EvaluationIntervals),
	"high-coverage-intervals":        constant(HighCoverageIntervals),
	"genome-evaluation-intervals":    constant(GenomeEvaluationIntervals),
	"genome-evaluation-intervals-hg38": constant(GenomeEvaluationIntervalsHg38),
	"vep-config":                     constant(VEPConfig),
	"context":                        constant(ContextMT),
	"low-coverage-regions":           constant(LowCoverageRegionsBED),
}

// Lookup returns the path of the named resource.
func Lookup(name string, opts Options) (string, error) {
	fn, ok := named[name]
	if !ok {
		return "", dataErrorf("unknown resource %q", name)
	}
	return fn(opts)
}

// Names returns the resource names accepted by Lookup, sorted.
func Names() []string {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

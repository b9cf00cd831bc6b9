// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/arvados/mnv/hgvs"
	"github.com/arvados/mnv/resource"
	"github.com/cheggaaa/pb/v3"
	log "github.com/sirupsen/logrus"
)

type perVariant struct {
	inputPath   string
	filtersPath string
	outputDir   string
	format      string
	window      int
	threads     int
	hgvsMode    string
	refPath     string
	entryOpts   entryOptions
	keepSample  func(string) bool
	ref         *refSequence
	bar         *pb.ProgressBar
	batchArgs
}

func (cmd *perVariant) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	runlocal := flags.Bool("local", false, "run on local host (default: run in an arvados container)")
	projectUUID := flags.String("project", "", "project `UUID` for output data")
	priority := flags.Int("priority", 500, "container request priority")
	preemptible := flags.Bool("preemptible", true, "request preemptible instances")
	flags.StringVar(&cmd.inputPath, "i", "", "genotype VCF `file` (\"{chrom}\" is replaced by chromosome name)")
	flags.StringVar(&cmd.filtersPath, "filters", "", "sites VCF `file` with variant filters (\"{chrom}\" is replaced by chromosome name; default: use genotype VCF FILTER column)")
	chromosomes := flags.String("chromosomes", "1-22", "chromosomes to process, e.g. \"1-22,X\"")
	flags.StringVar(&cmd.outputDir, "output-dir", cfg.OutputDir, "output `directory`")
	flags.StringVar(&cmd.format, "format", "tsv", "output table format: tsv, tsv.gz, gob, or gob.gz")
	flags.IntVar(&cmd.window, "window", cfg.Window, "maximum distance `bp` between paired variants")
	flags.IntVar(&cmd.threads, "threads", runtime.NumCPU(), "number of chromosomes to process concurrently")
	flags.StringVar(&cmd.entryOpts.PhaseField, "phase-field", "PID", "FORMAT `field` holding the phase set id")
	flags.StringVar(&cmd.entryOpts.GTField, "phased-gt-field", "GT", "FORMAT `field` holding the phased genotype, e.g. PGT")
	flags.IntVar(&cmd.entryOpts.Adj.GQ, "adj-gq", cfg.Adj.GQ, "minimum GQ for a high quality genotype")
	flags.IntVar(&cmd.entryOpts.Adj.DP, "adj-dp", cfg.Adj.DP, "minimum DP for a high quality genotype")
	flags.IntVar(&cmd.entryOpts.Adj.HaploidDP, "adj-haploid-dp", cfg.Adj.HaploidDP, "minimum DP for a high quality haploid genotype")
	flags.Float64Var(&cmd.entryOpts.Adj.AB, "adj-ab", cfg.Adj.AB, "minimum allele balance for a high quality heterozygous genotype")
	metaPath := flags.String("meta", "", "sample metadata `file` (TSV)")
	releaseOnly := flags.Bool("release-only", true, "with -meta, only use samples whose release flag is true")
	flags.StringVar(&cmd.hgvsMode, "hgvs", "", "add HGVS name of each MNV: \"delins\" or \"components\"")
	flags.StringVar(&cmd.refPath, "ref", "", "indexed reference FASTA `file` (with .fai) used to fill bases between paired variants in HGVS names")
	cmd.batchArgs.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if cmd.inputPath == "" {
		err = errors.New("missing required argument: -i")
		return 2
	} else if cmd.window < 1 {
		err = fmt.Errorf("invalid -window %d: must be at least 1", cmd.window)
		return 2
	} else if cmd.hgvsMode != "" && cmd.hgvsMode != "delins" && cmd.hgvsMode != "components" {
		err = fmt.Errorf("invalid -hgvs %q: expected \"delins\" or \"components\"", cmd.hgvsMode)
		return 2
	}
	if err = cmd.batchArgs.Check(); err != nil {
		return 2
	}
	if err = checkTableFormat(cmd.format); err != nil {
		return 2
	}
	chroms, err := parseChromosomes(*chromosomes)
	if err != nil {
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	if !*runlocal {
		err = cmd.runContainers(cfg, chroms, *chromosomes, *metaPath, *releaseOnly, *projectUUID, *priority, *preemptible, stdout)
		if err != nil {
			return 1
		}
		return 0
	}

	chroms = cmd.batchArgs.Slice(chroms)
	if len(chroms) == 0 {
		log.Infof("batch %d of %d has no chromosomes", cmd.batch, cmd.batches)
		return 0
	}
	if *metaPath != "" && *releaseOnly {
		var meta *sampleMeta
		meta, err = loadSampleMeta(*metaPath, resource.Genomes, false)
		if err != nil {
			return 1
		}
		var release map[string]bool
		release, err = meta.ReleaseSamples()
		if err != nil {
			return 1
		}
		log.Infof("using %d release samples from %s", len(release), *metaPath)
		cmd.keepSample = func(s string) bool { return release[s] }
	}
	if cmd.refPath != "" {
		cmd.ref, err = loadRefSequence(cmd.refPath)
		if err != nil {
			return 1
		}
		defer cmd.ref.Close()
	}
	err = os.MkdirAll(cmd.outputDir, 0777)
	if err != nil {
		return 1
	}
	cmd.bar = newProgressBar()
	if cmd.bar != nil {
		defer cmd.bar.Finish()
	}
	err = cmd.run(context.Background(), chroms)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *perVariant) runContainers(cfg Config, chroms []string, chromosomes, metaPath string, releaseOnly bool, projectUUID string, priority int, preemptible bool, stdout io.Writer) error {
	inputPath, filtersPath, refPath := cmd.inputPath, cmd.filtersPath, cmd.refPath
	outputs, err := cmd.batchArgs.RunBatches(context.Background(), func(ctx context.Context, batch int) (string, error) {
		if len(cmd.sliceBatch(chroms, batch)) == 0 {
			return "", nil
		}
		runner := newContainerRunner(cfg, fmt.Sprintf("mnv per-variant batch %d/%d", batch, cmd.batches), projectUUID, priority)
		runner.APIAccess = true
		runner.Preemptible = preemptible
		input, filters, ref, meta := inputPath, filtersPath, refPath, metaPath
		err := runner.TranslatePaths(&input, &filters, &ref, &meta)
		if err != nil {
			return "", err
		}
		runner.Args = []string{"per-variant", "-local=true",
			"-i", input,
			"-filters", filters,
			"-chromosomes", chromosomes,
			"-output-dir", "/mnt/output",
			"-format", cmd.format,
			fmt.Sprintf("-window=%d", cmd.window),
			fmt.Sprintf("-threads=%d", runner.VCPUs),
			"-phase-field", cmd.entryOpts.PhaseField,
			"-phased-gt-field", cmd.entryOpts.GTField,
			fmt.Sprintf("-adj-gq=%d", cmd.entryOpts.Adj.GQ),
			fmt.Sprintf("-adj-dp=%d", cmd.entryOpts.Adj.DP),
			fmt.Sprintf("-adj-haploid-dp=%d", cmd.entryOpts.Adj.HaploidDP),
			fmt.Sprintf("-adj-ab=%v", cmd.entryOpts.Adj.AB),
			"-meta", meta,
			fmt.Sprintf("-release-only=%v", releaseOnly),
			"-hgvs", cmd.hgvsMode,
			"-ref", ref,
		}
		runner.Args = append(runner.Args, cmd.batchArgs.Args(batch)...)
		return runner.RunContext(ctx)
	})
	if err != nil {
		return err
	}
	for _, output := range outputs {
		if output != "" {
			fmt.Fprintln(stdout, output)
		}
	}
	return nil
}

// chromOutput holds the three output tables of one chromosome.
type chromOutput struct {
	chrom   string
	writers [nCategories]mnvWriter
	counts  [nCategories]int
	joiner  *windowJoiner
	started time.Time
}

func (cmd *perVariant) outputPath(chrom string, cat mnvCategory) string {
	return fmt.Sprintf("%s/MNV_chr%s_%s.%s", cmd.outputDir, chrom, cat, cmd.format)
}

func (cmd *perVariant) openOutput(chrom string) (*chromOutput, error) {
	out := &chromOutput{chrom: chrom, started: time.Now()}
	for cat := mnvCategory(0); cat < nCategories; cat++ {
		w, err := createMNVTable(cmd.outputPath(chrom, cat), cmd.hgvsMode != "")
		if err != nil {
			out.abort()
			return nil, err
		}
		out.writers[cat] = w
	}
	out.joiner = &windowJoiner{
		window: cmd.window,
		emit: func(cat mnvCategory, rec *MNVRecord) error {
			if cmd.hgvsMode != "" {
				rec.HGVS = cmd.hgvsName(rec)
			}
			out.counts[cat]++
			return out.writers[cat].Write(rec)
		},
	}
	return out, nil
}

func (out *chromOutput) abort() {
	for _, w := range out.writers {
		if w != nil {
			w.Close()
		}
	}
}

func (out *chromOutput) Close() error {
	var firstErr error
	for cat, w := range out.writers {
		err := w.Close()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		log.Infof("chr%s %s: %d MNVs, started %s, finished %s", out.chrom, mnvCategory(cat), out.counts[cat], out.started.Format(time.RFC3339), time.Now().Format(time.RFC3339))
	}
	return firstErr
}

// run processes the given chromosomes. If the input path names one
// file per chromosome, chromosomes are processed concurrently.
func (cmd *perVariant) run(ctx context.Context, chroms []string) error {
	if !strings.Contains(cmd.inputPath, "{chrom}") {
		return cmd.runFiles(ctx, cmd.inputPath, cmd.filtersPath, chroms)
	}
	throttle := newThrottle(ctx, cmd.threads)
	for _, chrom := range chroms {
		chrom := chrom
		throttle.Go(chrom, func(ctx context.Context) error {
			input := strings.ReplaceAll(cmd.inputPath, "{chrom}", chrom)
			filters := strings.ReplaceAll(cmd.filtersPath, "{chrom}", chrom)
			return cmd.runFiles(ctx, input, filters, []string{chrom})
		})
	}
	return throttle.Wait()
}

// runFiles reads one genotype VCF (and filter table, if any) and
// writes the tables for the given chromosomes. Tables for chromosomes
// that do not appear in the input are left empty.
func (cmd *perVariant) runFiles(ctx context.Context, inputPath, filtersPath string, chroms []string) error {
	log.Infof("%s: start", inputPath)
	outs := map[string]*chromOutput{}
	closeAll := func() error {
		var firstErr error
		for _, chrom := range chroms {
			if out := outs[chrom]; out != nil {
				if err := out.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	}
	for _, chrom := range chroms {
		out, err := cmd.openOutput(chrom)
		if err != nil {
			closeAll()
			return err
		}
		outs[chrom] = out
	}
	err := cmd.joinFile(ctx, inputPath, filtersPath, outs)
	if err != nil {
		closeAll()
		return err
	}
	err = closeAll()
	if err != nil {
		return err
	}
	log.Infof("%s: done", inputPath)
	return nil
}

func (cmd *perVariant) joinFile(ctx context.Context, inputPath, filtersPath string, outs map[string]*chromOutput) error {
	rows, err := openVCFRows(inputPath, true, cmd.entryOpts, cmd.keepSample, cmd.bar)
	if err != nil {
		return err
	}
	defer rows.Close()
	log.Infof("%s: %d samples", inputPath, len(rows.SampleNames()))
	var filters *siteFilterCursor
	if filtersPath != "" {
		src, err := openVCFRows(filtersPath, false, entryOptions{}, nil, nil)
		if err != nil {
			return err
		}
		filters = newSiteFilterCursor(src)
		defer filters.Close()
	}
	for n := 0; ; n++ {
		if n&0xfff == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		row, err := rows.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		out := outs[strings.TrimPrefix(row.Locus.Contig, "chr")]
		if out == nil || len(row.entries) == 0 {
			continue
		}
		if filters != nil {
			row.Filters, err = filters.Lookup(row.Locus, row.Ref, row.Alt)
			if err != nil {
				return err
			}
		}
		err = out.joiner.Add(row)
		if err != nil {
			return fmt.Errorf("%s: %w", inputPath, err)
		}
	}
}

var warnHGVSOnce sync.Once

// hgvsName returns the HGVS name of the MNV formed by rec's two
// variants, or "" if they overlap.
func (cmd *perVariant) hgvsName(rec *MNVRecord) string {
	gapStart := rec.PrevLocus.Position + len(rec.PrevRef)
	gapLen := rec.Locus.Position - gapStart
	if gapLen < 0 {
		return ""
	}
	gap, ok := cmd.ref.Bases(rec.Locus.Contig, gapStart, gapLen)
	if !ok {
		if cmd.ref != nil {
			warnHGVSOnce.Do(func() { log.Warnf("reference sequence does not cover %s, using N", rec.Locus) })
		}
		gap = strings.Repeat("N", gapLen)
	}
	v, err := hgvs.Combine(
		hgvs.Variant{Position: rec.PrevLocus.Position, Ref: rec.PrevRef, New: rec.PrevAlt},
		gap,
		hgvs.Variant{Position: rec.Locus.Position, Ref: rec.Ref, New: rec.Alt})
	if err != nil {
		return ""
	}
	if cmd.hgvsMode == "components" {
		return hgvs.Genomic(rec.Locus.Contig, v.Components()...)
	}
	return hgvs.Genomic(rec.Locus.Contig, v.Trim())
}

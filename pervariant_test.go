// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bytes"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/check.v1"
)

const testPipelineVCF = `##fileformat=VCFv4.2
##FILTER=<ID=PASS,Description="All filters passed">
##FILTER=<ID=AC0,Description="Allele count is zero">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PID,Number=1,Type=String,Description="Phase set">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2	s3	s4
1	100	.	A	G	.	PASS	AF=0.1;AC=1	GT:GQ:DP:AD:PID	0|1:30:20:10,10:a	1|1:30:20:0,20:b	0|1:30:20:10,10:c	0|1:30:20:10,10:d
1	101	.	C	T	.	PASS	AF=0.2;AC=2	GT:GQ:DP:AD:PID	0|1:30:20:10,10:a	1|1:30:20:0,20:b	1|1:5:20:0,20:c	1|0:30:20:10,10:d
1	105	.	G	A	.	PASS	AF=0.3;AC=3	GT:GQ:DP:AD:PID	0|1:30:20:10,10:a	0/0:30:20:20,0:.	0/0:30:20:20,0:.	0/0:30:20:20,0:.
1	120	.	T	C	.	PASS	AF=0.4;AC=4	GT:GQ:DP:AD:PID	0|1:30:20:10,10:a	0/0:30:20:20,0:.	0/0:30:20:20,0:.	0/0:30:20:20,0:.
2	10	.	A	C	.	PASS	AF=0.5;AC=5	GT:GQ:DP:AD:PID	0/0:30:20:20,0:.	1|1:30:20:0,20:e	0/0:30:20:20,0:.	0/0:30:20:20,0:.
2	12	.	G	T	.	PASS	.	GT:GQ:DP:AD:PID	0/0:30:20:20,0:.	1|1:30:20:0,20:e	0/0:30:20:20,0:.	0/0:30:20:20,0:.
`

const testPipelineSites = `##fileformat=VCFv4.2
##FILTER=<ID=PASS,Description="All filters passed">
##FILTER=<ID=AC0,Description="Allele count is zero">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PID,Number=1,Type=String,Description="Phase set">
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	100	.	A	G	.	PASS	.
1	101	.	C	T	.	PASS	.
1	105	.	G	A	.	AC0	.
1	120	.	T	C	.	PASS	.
`

type pervariantSuite struct{}

var _ = check.Suite(&pervariantSuite{})

func (s *pervariantSuite) writeInputs(c *check.C) (tmpdir, input, sites string) {
	tmpdir = c.MkDir()
	input = writeTestFile(c, tmpdir+"/genotypes.vcf.gz", testPipelineVCF)
	sites = writeTestFile(c, tmpdir+"/sites.vcf", testPipelineSites)
	return
}

func (s *pervariantSuite) TestTSV(c *check.C) {
	tmpdir, input, sites := s.writeInputs(c)
	var stderr bytes.Buffer
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", input,
		"-filters", sites,
		"-chromosomes", "1,2",
		"-output-dir", tmpdir + "/out",
	}, nil, os.Stdout, &stderr)
	c.Check(exited, check.Equals, 0, check.Commentf("%s", stderr.String()))

	for fnm, expect := range map[string]string{
		"MNV_chr1_het.tsv":           `locus	ref	alt	n	frac_adj	dist	AF	AC	filters	prev_locus	prev_ref	prev_alt	prev_filters	prev_AC	prev_AF
1:101	C	T	1	1	1	0.2	2	PASS	1:100	A	G	PASS	1	0.1
1:105	G	A	1	1	5	0.3	3	AC0	1:100	A	G	PASS	1	0.1
1:105	G	A	1	1	4	0.3	3	AC0	1:101	C	T	PASS	2	0.2
`,
		"MNV_chr1_hom_hom.tsv":       `locus	ref	alt	n	frac_adj	dist	AF	AC	filters	prev_locus	prev_ref	prev_alt	prev_filters	prev_AC	prev_AF
1:101	C	T	1	1	1	0.2	2	PASS	1:100	A	G	PASS	1	0.1
`,
		"MNV_chr1_partially_hom.tsv": `locus	ref	alt	n	frac_adj	dist	AF	AC	filters	prev_locus	prev_ref	prev_alt	prev_filters	prev_AC	prev_AF
1:101	C	T	1	0	1	0.2	2	PASS	1:100	A	G	PASS	1	0.1
`,
		"MNV_chr2_het.tsv":           "locus\tref\talt\tn\tfrac_adj\tdist\tAF\tAC\tfilters\tprev_locus\tprev_ref\tprev_alt\tprev_filters\tprev_AC\tprev_AF\n",
		"MNV_chr2_hom_hom.tsv":       `locus	ref	alt	n	frac_adj	dist	AF	AC	filters	prev_locus	prev_ref	prev_alt	prev_filters	prev_AC	prev_AF
2:12	G	T	1	1	2	NA	NA	.	2:10	A	C	.	5	0.5
`,
		"MNV_chr2_partially_hom.tsv": "locus\tref\talt\tn\tfrac_adj\tdist\tAF\tAC\tfilters\tprev_locus\tprev_ref\tprev_alt\tprev_filters\tprev_AC\tprev_AF\n",
	} {
		buf, err := os.ReadFile(tmpdir + "/out/" + fnm)
		if !c.Check(err, check.IsNil) {
			out, _ := exec.Command("find", tmpdir, "-ls").CombinedOutput()
			c.Logf("%s", out)
			continue
		}
		c.Check(string(buf), check.Equals, expect, check.Commentf("%s", fnm))
	}
}

func (s *pervariantSuite) TestWindow(c *check.C) {
	tmpdir, input, _ := s.writeInputs(c)
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", input,
		"-chromosomes", "1",
		"-window", "1",
		"-output-dir", tmpdir,
	}, nil, os.Stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	recs, err := loadMNVTable(tmpdir + "/MNV_chr1_het.tsv")
	c.Assert(err, check.IsNil)
	c.Assert(recs, check.HasLen, 1)
	c.Check(recs[0].Locus, check.Equals, Locus{"1", 101})
	c.Check(recs[0].Dist, check.Equals, 1)
	// without -filters, the genotype VCF's FILTER column is used
	c.Check(recs[0].Filters.Pass(), check.Equals, true)
	_, err = os.Stat(tmpdir + "/MNV_chr2_het.tsv")
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *pervariantSuite) TestGobWithHGVSAndMeta(c *check.C) {
	tmpdir, input, sites := s.writeInputs(c)
	ref := writeTestFasta(c, tmpdir+"/ref.fa", 120, [2]string{"1",
		strings.Repeat("N", 99) + "ACTTTG" + strings.Repeat("N", 14) + "T" + strings.Repeat("N", 10)})
	meta := writeTestFile(c, tmpdir+"/meta.tsv", "s\trelease\tpop\n"+
		"s1\ttrue\tnfe\n"+
		"s2\tfalse\tnfe\n"+
		"s3\tTRUE\tafr\n"+
		"s4\ttrue\tafr\n")
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", input,
		"-filters", sites,
		"-chromosomes", "1-2",
		"-output-dir", tmpdir + "/out",
		"-format", "gob.gz",
		"-hgvs", "delins",
		"-ref", ref,
		"-meta", meta,
	}, nil, os.Stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	recs, err := loadMNVTable(tmpdir + "/out/MNV_chr1_het.gob.gz")
	c.Assert(err, check.IsNil)
	var hgvs []string
	for _, rec := range recs {
		hgvs = append(hgvs, rec.HGVS)
	}
	c.Check(hgvs, check.DeepEquals, []string{
		"1:g.100_101delinsGT",
		"1:g.100_105delinsGCTTTA",
		"1:g.101_105delinsTTTTA",
	})

	// s2 is not a release sample
	for _, fnm := range []string{"MNV_chr1_hom_hom.gob.gz", "MNV_chr2_hom_hom.gob.gz"} {
		recs, err = loadMNVTable(tmpdir + "/out/" + fnm)
		c.Check(err, check.IsNil)
		c.Check(recs, check.HasLen, 0)
	}
	recs, err = loadMNVTable(tmpdir + "/out/MNV_chr1_partially_hom.gob.gz")
	c.Check(err, check.IsNil)
	c.Check(recs, check.HasLen, 1)
}

func (s *pervariantSuite) TestChromTemplate(c *check.C) {
	tmpdir := c.MkDir()
	var chr1, chr2 []string
	for _, line := range strings.Split(strings.TrimSuffix(testPipelineVCF, "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			chr1 = append(chr1, line)
			chr2 = append(chr2, line)
		} else if strings.HasPrefix(line, "1\t") {
			chr1 = append(chr1, line)
		} else {
			chr2 = append(chr2, line)
		}
	}
	writeTestFile(c, tmpdir+"/chr1.vcf", strings.Join(chr1, "\n")+"\n")
	writeTestFile(c, tmpdir+"/chr2.vcf", strings.Join(chr2, "\n")+"\n")
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", tmpdir + "/chr{chrom}.vcf",
		"-chromosomes", "1,2",
		"-output-dir", tmpdir,
		"-threads", "2",
	}, nil, os.Stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	recs, err := loadMNVTable(tmpdir + "/MNV_chr1_het.tsv")
	c.Check(err, check.IsNil)
	c.Check(recs, check.HasLen, 3)
	recs, err = loadMNVTable(tmpdir + "/MNV_chr2_hom_hom.tsv")
	c.Check(err, check.IsNil)
	c.Check(recs, check.HasLen, 1)
}

func (s *pervariantSuite) TestUsage(c *check.C) {
	for _, args := range [][]string{
		{"-local=true"},
		{"-local=true", "-i", "x.vcf", "-window", "0"},
		{"-local=true", "-i", "x.vcf", "-format", "csv"},
		{"-local=true", "-i", "x.vcf", "-hgvs", "protein"},
		{"-local=true", "-i", "x.vcf", "-chromosomes", "5-1"},
		{"-local=true", "-i", "x.vcf", "extra"},
		{"-local=true", "-i", "x.vcf", "-batches", "0"},
		{"-local=true", "-i", "x.vcf", "-batches", "2", "-batch", "2"},
	} {
		var stderr bytes.Buffer
		exited := (&perVariant{}).RunCommand("mnv per-variant", args, nil, os.Stdout, &stderr)
		c.Check(exited, check.Equals, 2, check.Commentf("%q", args))
		c.Check(stderr.Len() > 0, check.Equals, true)
	}
}

func (s *pervariantSuite) TestMissingInput(c *check.C) {
	tmpdir := c.MkDir()
	var stderr bytes.Buffer
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", tmpdir + "/nonexistent.vcf",
		"-output-dir", tmpdir,
	}, nil, os.Stdout, &stderr)
	c.Check(exited, check.Equals, 1)
	c.Check(stderr.String(), check.Matches, `(?ms).*no such file or directory.*`)
}

func (s *pervariantSuite) TestBatchSlice(c *check.C) {
	autosomes, err := parseChromosomes("1-22")
	c.Assert(err, check.IsNil)
	for _, trial := range []struct {
		batches int
		sizes   []int
	}{
		{1, []int{22}},
		{2, []int{11, 11}},
		{3, []int{8, 8, 6}},
		{10, []int{3, 3, 3, 3, 3, 3, 3, 1, 0, 0}},
		{22, nil},
		{30, nil},
	} {
		var all []string
		for batch := 0; batch < trial.batches; batch++ {
			b := batchArgs{batches: trial.batches, batch: batch}
			got := b.Slice(autosomes)
			if trial.sizes != nil {
				c.Check(got, check.HasLen, trial.sizes[batch], check.Commentf("batches %d batch %d", trial.batches, batch))
			} else if batch < 22 {
				c.Check(got, check.DeepEquals, autosomes[batch:batch+1])
			} else {
				c.Check(got, check.HasLen, 0)
			}
			all = append(all, got...)
		}
		c.Check(all, check.DeepEquals, autosomes, check.Commentf("batches %d", trial.batches))
	}
	b := batchArgs{batches: 4, batch: -1}
	c.Check(b.Slice(autosomes), check.DeepEquals, autosomes)
}

func (s *pervariantSuite) TestBatches(c *check.C) {
	tmpdir, input, _ := s.writeInputs(c)
	exited := (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", input,
		"-chromosomes", "1,2",
		"-batches", "2",
		"-batch", "1",
		"-output-dir", tmpdir + "/out",
	}, nil, os.Stdout, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	_, err := os.Stat(tmpdir + "/out/MNV_chr1_het.tsv")
	c.Check(os.IsNotExist(err), check.Equals, true)
	recs, err := loadMNVTable(tmpdir + "/out/MNV_chr2_hom_hom.tsv")
	c.Check(err, check.IsNil)
	c.Check(recs, check.HasLen, 1)

	// more batches than chromosomes: trailing batches are empty
	exited = (&perVariant{}).RunCommand("mnv per-variant", []string{
		"-local=true",
		"-i", input,
		"-batches", "10",
		"-batch", "9",
		"-output-dir", tmpdir + "/empty",
	}, nil, os.Stdout, os.Stderr)
	c.Check(exited, check.Equals, 0)
	_, err = os.Stat(tmpdir + "/empty")
	c.Check(os.IsNotExist(err), check.Equals, true)
}

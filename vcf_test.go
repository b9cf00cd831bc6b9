// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

const testGenotypeVCF = `##fileformat=VCFv4.2
##FILTER=<ID=PASS,Description="All filters passed">
##FILTER=<ID=AC0,Description="Allele count is zero">
##FILTER=<ID=RF,Description="Failed random forest filter">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PID,Number=1,Type=String,Description="Phase set">
##contig=<ID=1,length=1000>
##contig=<ID=2,length=1000>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	s1	s2	s3
1	100	.	ACGT	ACGA	.	PASS	AF=0.1;AC=3	GT:GQ:DP:AD:PID	0|1:30:20:10,10:p1	0/0:30:20:20,0:.	1|1:40:30:0,30:p3
1	101	.	C	T,A,*	.	AC0	AF=0.2,0.3,0.01;AC=4,5,1	GT:GQ:DP:AD:PID	0|1:30:20:10,10,0,0:p1	2|0:10:20:10,0,10,0:p2	0|3:40:30:0,0,0,30:p3
2	50	.	G	T	.	.	AF=0.5;AC=10	GT:GQ:DP:AD:PID	1|1:30:20:0,20:.	./.:0:0:0,0:.	0|1:30:20:10,10:p3
`

const testSitesVCF = `##fileformat=VCFv4.2
##FILTER=<ID=PASS,Description="All filters passed">
##FILTER=<ID=AC0,Description="Allele count is zero">
##FILTER=<ID=RF,Description="Failed random forest filter">
##INFO=<ID=AF,Number=A,Type=Float,Description="Allele frequency">
##INFO=<ID=AC,Number=A,Type=Integer,Description="Allele count">
##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">
##FORMAT=<ID=GQ,Number=1,Type=Integer,Description="Genotype quality">
##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Read depth">
##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths">
##FORMAT=<ID=PID,Number=1,Type=String,Description="Phase set">
##contig=<ID=1,length=1000>
##contig=<ID=2,length=1000>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	100	.	ACGT	ACGA	.	RF;AC0	AF=0.1;AC=3
1	101	.	C	T,A	.	AC0	AF=0.2,0.3;AC=4,5
2	50	.	G	T	.	PASS	AF=0.5;AC=10
`

// closeTo checks float64 equality within float32 precision.
var closeTo = &closeToChecker{&check.CheckerInfo{Name: "closeTo", Params: []string{"obtained", "expected"}}}

type closeToChecker struct {
	*check.CheckerInfo
}

func (checker *closeToChecker) Check(params []interface{}, names []string) (bool, string) {
	obtained, ok := params[0].(float64)
	if !ok {
		return false, "obtained value is not a float64"
	}
	expected, ok := params[1].(float64)
	if !ok {
		return false, "expected value is not a float64"
	}
	return math.Abs(obtained-expected) <= 1e-6*math.Max(1, math.Abs(expected)), ""
}

var testAdj = adjThresholds{GQ: 20, DP: 10, HaploidDP: 5, AB: 0.2}

type vcfSuite struct{}

var _ = check.Suite(&vcfSuite{})

func writeTestFile(c *check.C, fnm, content string) string {
	w, err := zcreate(fnm)
	c.Assert(err, check.IsNil)
	_, err = io.WriteString(w, content)
	c.Assert(err, check.IsNil)
	c.Assert(w.Close(), check.IsNil)
	return fnm
}

func readAllRows(c *check.C, rdr rowReader) []*siteRow {
	var rows []*siteRow
	for {
		row, err := rdr.Next()
		if err == io.EOF {
			break
		}
		c.Assert(err, check.IsNil)
		rows = append(rows, row)
	}
	c.Check(rdr.Close(), check.IsNil)
	return rows
}

func describeEntries(row *siteRow) string {
	var s []string
	for _, e := range row.entries {
		s = append(s, fmt.Sprintf("%d:%s:%s:%v", e.sample, e.gt, e.phaseID, e.adj))
	}
	return strings.Join(s, " ")
}

func (s *vcfSuite) TestRows(c *check.C) {
	for _, fnm := range []string{"test.vcf", "test.vcf.gz"} {
		fnm = writeTestFile(c, c.MkDir()+"/"+fnm, testGenotypeVCF)
		rdr, err := openVCFRows(fnm, true, entryOptions{Adj: testAdj}, nil, nil)
		c.Assert(err, check.IsNil)
		c.Check(rdr.SampleNames(), check.DeepEquals, []string{"s1", "s2", "s3"})
		rows := readAllRows(c, rdr)
		c.Assert(rows, check.HasLen, 4)

		c.Check(rows[0].Locus, check.Equals, Locus{"1", 101})
		c.Check(rows[0].Ref+">"+rows[0].Alt, check.Equals, "C>T")
		c.Check(rows[0].AIndex, check.Equals, 1)
		c.Check(rows[0].AF, closeTo, 0.2)
		c.Check(rows[0].AC, check.Equals, 4)
		c.Check(rows[0].Filters.String(), check.Equals, "AC0")
		c.Check(describeEntries(rows[0]), check.Equals, "0:0|1:p1:true")

		c.Check(rows[1].Locus, check.Equals, Locus{"1", 101})
		c.Check(rows[1].Ref+">"+rows[1].Alt, check.Equals, "C>A")
		c.Check(rows[1].AIndex, check.Equals, 2)
		c.Check(rows[1].AF, closeTo, 0.3)
		c.Check(rows[1].AC, check.Equals, 5)
		c.Check(describeEntries(rows[1]), check.Equals, "1:1|0:p2:false")

		// ACGT>ACGA at 100 is T>A at 103, after the record at 101
		c.Check(rows[2].Locus, check.Equals, Locus{"1", 103})
		c.Check(rows[2].Ref+">"+rows[2].Alt, check.Equals, "T>A")
		c.Check(rows[2].Filters.Pass(), check.Equals, true)
		c.Check(describeEntries(rows[2]), check.Equals, "0:0|1:p1:true 2:1|1:p3:true")

		// FILTER "." means filters were not applied
		c.Check(rows[3].Locus, check.Equals, Locus{"2", 50})
		c.Check(rows[3].Filters.Defined, check.Equals, false)
		c.Check(rows[3].Filters.Pass(), check.Equals, false)
		c.Check(rows[3].Filters.String(), check.Equals, ".")
		c.Check(rows[3].AC, check.Equals, 10)
		c.Check(describeEntries(rows[3]), check.Equals, "2:0|1:p3:true")
	}
}

func (s *vcfSuite) TestKeepSamples(c *check.C) {
	fnm := writeTestFile(c, c.MkDir()+"/test.vcf", testGenotypeVCF)
	rdr, err := openVCFRows(fnm, true, entryOptions{Adj: testAdj}, func(name string) bool { return name != "s1" }, nil)
	c.Assert(err, check.IsNil)
	c.Check(rdr.SampleNames(), check.DeepEquals, []string{"s2", "s3"})
	rows := readAllRows(c, rdr)
	c.Assert(rows, check.HasLen, 4)
	c.Check(describeEntries(rows[0]), check.Equals, "")
	c.Check(describeEntries(rows[1]), check.Equals, "0:1|0:p2:false")
	c.Check(describeEntries(rows[2]), check.Equals, "1:1|1:p3:true")
}

func (s *vcfSuite) TestSitesOnly(c *check.C) {
	fnm := writeTestFile(c, c.MkDir()+"/sites.vcf", testSitesVCF)
	rdr, err := openVCFRows(fnm, false, entryOptions{}, nil, nil)
	c.Assert(err, check.IsNil)
	rows := readAllRows(c, rdr)
	c.Assert(rows, check.HasLen, 4)
	var got []string
	for _, row := range rows {
		got = append(got, fmt.Sprintf("%s %s>%s %s %d", row.Locus, row.Ref, row.Alt, row.Filters, len(row.entries)))
	}
	c.Check(got, check.DeepEquals, []string{
		"1:101 C>T AC0 0",
		"1:101 C>A AC0 0",
		"1:103 T>A RF;AC0 0",
		"2:50 G>T PASS 0",
	})
}

func (s *vcfSuite) TestUnsorted(c *check.C) {
	lines := strings.Split(testSitesVCF, "\n")
	var body, unsorted []string
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			unsorted = append(unsorted, line)
		} else if line != "" {
			body = append(body, line)
		}
	}
	unsorted = append(unsorted, body[1], body[0])
	fnm := writeTestFile(c, c.MkDir()+"/unsorted.vcf", strings.Join(unsorted, "\n")+"\n")
	rdr, err := openVCFRows(fnm, false, entryOptions{}, nil, nil)
	c.Assert(err, check.IsNil)
	defer rdr.Close()
	for err == nil {
		_, err = rdr.Next()
	}
	c.Check(err, check.ErrorMatches, `.*input is not sorted: 1:100 after 1:101`)
}

func (s *vcfSuite) TestContigAgain(c *check.C) {
	var header, body []string
	for _, line := range strings.Split(testSitesVCF, "\n") {
		if strings.HasPrefix(line, "#") {
			header = append(header, line)
		} else if line != "" {
			body = append(body, line)
		}
	}
	c.Assert(body, check.HasLen, 3)
	lines := append(header, body[0], body[2], body[1])
	fnm := writeTestFile(c, c.MkDir()+"/split.vcf", strings.Join(lines, "\n")+"\n")
	rdr, err := openVCFRows(fnm, false, entryOptions{}, nil, nil)
	c.Assert(err, check.IsNil)
	defer rdr.Close()
	for err == nil {
		_, err = rdr.Next()
	}
	c.Check(err, check.ErrorMatches, `.*input is not sorted: 1:101 after contig 2`)
}

func (s *vcfSuite) TestSiteFilterCursor(c *check.C) {
	fnm := writeTestFile(c, c.MkDir()+"/sites.vcf.gz", testSitesVCF)
	src, err := openVCFRows(fnm, false, entryOptions{}, nil, nil)
	c.Assert(err, check.IsNil)
	cursor := newSiteFilterCursor(src)
	defer cursor.Close()
	for _, trial := range []struct {
		locus    Locus
		ref, alt string
		filters  string
	}{
		{Locus{"1", 101}, "C", "T", "AC0"},
		{Locus{"1", 101}, "C", "A", "AC0"},
		{Locus{"1", 101}, "C", "G", "."},
		{Locus{"1", 102}, "A", "G", "."},
		{Locus{"1", 103}, "T", "A", "RF;AC0"},
		{Locus{"1", 103}, "T", "G", "."},
		{Locus{"chr2", 50}, "G", "T", "PASS"},
		{Locus{"3", 10}, "G", "T", "."},
	} {
		f, err := cursor.Lookup(trial.locus, trial.ref, trial.alt)
		c.Check(err, check.IsNil)
		c.Check(f.String(), check.Equals, trial.filters, check.Commentf("%+v", trial))
	}
}

func (s *vcfSuite) TestFilters(c *check.C) {
	c.Check(parseFilters(".").Defined, check.Equals, false)
	c.Check(parseFilters("PASS").Pass(), check.Equals, true)
	c.Check(parseFilters("RF;AC0").Names, check.DeepEquals, []string{"RF", "AC0"})
	c.Check(vcfFilters(".").Defined, check.Equals, false)
	c.Check(vcfFilters(".").Pass(), check.Equals, false)
	c.Check(vcfFilters(".").String(), check.Equals, ".")
	c.Check(vcfFilters("PASS").Pass(), check.Equals, true)
	c.Check(vcfFilters("PASS").String(), check.Equals, "PASS")
	c.Check(vcfFilters("LCR").Pass(), check.Equals, false)
	c.Check(Filters{}.Pass(), check.Equals, false)
}

func (s *vcfSuite) TestMissingFile(c *check.C) {
	_, err := openVCFRows(c.MkDir()+"/nonexistent.vcf", false, entryOptions{}, nil, nil)
	c.Check(os.IsNotExist(err), check.Equals, true)
}

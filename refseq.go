// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/fasta"
)

// refSequence reads reference bases from an indexed FASTA file. It is
// safe for concurrent use.
type refSequence struct {
	fnm    string
	mtx    sync.Mutex
	seeker *fasta.Seeker
}

// loadRefSequence opens fnm, which must have a samtools-style index
// at fnm+".fai".
func loadRefSequence(fnm string) (ref *refSequence, err error) {
	for _, f := range []string{fnm, fnm + ".fai"} {
		if _, err = os.Stat(f); err != nil {
			return nil, err
		}
	}
	defer func() {
		if r := recover(); r != nil {
			ref, err = nil, fmt.Errorf("%s: %v", fnm, r)
		}
	}()
	return &refSequence{fnm: fnm, seeker: fasta.NewSeeker(fnm, "")}, nil
}

// Bases returns n reference bases starting at 1-based position pos.
// The contig may be named with or without a "chr" prefix.
func (ref *refSequence) Bases(contig string, pos, n int) (string, bool) {
	if ref == nil || pos < 1 || n < 0 {
		return "", false
	}
	if n == 0 {
		return "", true
	}
	ref.mtx.Lock()
	defer ref.mtx.Unlock()
	trimmed := strings.TrimPrefix(contig, "chr")
	for _, name := range []string{contig, trimmed, "chr" + trimmed} {
		seq, ok := ref.seek(name, pos-1, pos-1+n)
		if ok && len(seq) == n {
			return strings.ToUpper(dna.BasesToString(seq)), true
		}
	}
	return "", false
}

func (ref *refSequence) seek(name string, start, end int) (seq []dna.Base, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			seq, ok = nil, false
		}
	}()
	seq, err := fasta.SeekByName(ref.seeker, name, start, end)
	return seq, err == nil
}

func (ref *refSequence) Close() error {
	if ref == nil {
		return nil
	}
	ref.mtx.Lock()
	defer ref.mtx.Unlock()
	return ref.seeker.Close()
}

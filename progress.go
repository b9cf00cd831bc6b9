// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/klauspost/pgzip"
	"github.com/mattn/go-isatty"
)

// newProgressBar returns a byte-count progress bar, or nil if stderr
// is not a terminal.
func newProgressBar() *pb.ProgressBar {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	bar := pb.Full.New(0)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(os.Stderr)
	return bar.Start()
}

// zopenProgress is like zopen, but advances bar (if not nil) as the
// compressed input is consumed.
func zopenProgress(fnm string, bar *pb.ProgressBar) (io.ReadCloser, error) {
	if bar == nil {
		return zopen(fnm)
	}
	f, err := open(fnm)
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	bar.AddTotal(size)
	// Closing the proxy reader would finish the bar, which is
	// shared by all inputs, so only f gets closed.
	rdr := bar.NewProxyReader(f)
	if !isGzipName(fnm) {
		return readCloser{rdr, f}, nil
	}
	zr, err := pgzip.NewReader(bufio.NewReaderSize(rdr, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReader{Reader: zr, f: f}, nil
}

// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// isGzipName reports whether fnm names a gzip or bgzip file. VCFs
// and sample metadata are usually ".bgz"; MNV tables are ".gz".
func isGzipName(fnm string) bool {
	return strings.HasSuffix(fnm, ".gz") || strings.HasSuffix(fnm, ".bgz")
}

// zopen opens fnm for reading (see open), decompressing it if
// isGzipName(fnm).
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := open(fnm)
	if err != nil || !isGzipName(fnm) {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReader{Reader: rdr, f: f}, nil
}

// readCloser reads from one source and closes another, e.g., a
// proxy reader and the file underneath it.
type readCloser struct {
	io.Reader
	io.Closer
}

type gzipReader struct {
	*pgzip.Reader
	f io.Closer
}

func (gr *gzipReader) Close() error {
	e1 := gr.Reader.Close()
	e2 := gr.f.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// zcreate creates fnm, compressing the output if isGzipName(fnm).
func zcreate(fnm string) (io.WriteCloser, error) {
	f, err := os.Create(fnm)
	if err != nil || !isGzipName(fnm) {
		return f, err
	}
	bufw := bufio.NewWriterSize(f, 4*1024*1024)
	return &gzipWriter{Writer: pgzip.NewWriter(bufw), buf: bufw, f: f}, nil
}

type gzipWriter struct {
	*pgzip.Writer
	buf *bufio.Writer
	f   *os.File
}

func (gw *gzipWriter) Close() error {
	if err := gw.Writer.Close(); err != nil {
		gw.f.Close()
		return err
	}
	if err := gw.buf.Flush(); err != nil {
		gw.f.Close()
		return err
	}
	return gw.f.Close()
}

var (
	keepClient *keepclient.KeepClient
	siteFS     arvados.CustomFileSystem
	siteFSMtx  sync.Mutex
)

type file interface {
	io.ReadCloser
	io.Seeker
}

// open opens fnm for reading. When ARVADOS_API_HOST is set and fnm is
// a collection path (see TranslatePaths), the file is read through the
// Arvados API instead of a FUSE mount, with a block cache that grows
// by two blocks for each open file.
func open(fnm string) (file, error) {
	if os.Getenv("ARVADOS_API_HOST") == "" {
		return os.Open(fnm)
	}
	m := collectionInPathRe.FindStringSubmatch(fnm)
	if m == nil {
		return os.Open(fnm)
	}
	collID, collPath := m[2], m[3]

	siteFSMtx.Lock()
	defer siteFSMtx.Unlock()
	if siteFS == nil {
		log.Info("setting up Arvados client")
		client := arvados.NewClientFromEnv()
		ac, err := arvadosclient.New(client)
		if err != nil {
			return nil, err
		}
		ac.Client = arvados.DefaultSecureClient
		keepClient = keepclient.New(ac)
		// Don't use keepclient's default short timeouts.
		keepClient.HTTPClient = arvados.DefaultSecureClient
		keepClient.BlockCache = &keepclient.BlockCache{MaxBlocks: 4}
		siteFS = client.SiteFileSystem(keepClient)
	} else {
		keepClient.BlockCache.MaxBlocks += 2
	}

	log.Infof("reading %q from %s using Arvados client", collPath, collID)
	f, err := siteFS.Open("by_id/" + collID + collPath)
	if err != nil {
		return nil, err
	}
	return &keepFile{file: f}, nil
}

type keepFile struct {
	file
	once sync.Once
}

func (kf *keepFile) Close() error {
	kf.once.Do(func() {
		siteFSMtx.Lock()
		keepClient.BlockCache.MaxBlocks -= 2
		siteFSMtx.Unlock()
	})
	return kf.file.Close()
}

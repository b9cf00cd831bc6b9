// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package mnv

import (
	"bufio"
	"encoding/gob"
	"io"
)

// MNVChunk is the unit of the gob table format. A table is a
// sequence of chunks.
type MNVChunk struct {
	Records []MNVRecord
}

const gobChunkSize = 10000

type gobMNVWriter struct {
	w     io.WriteCloser
	bufw  *bufio.Writer
	enc   *gob.Encoder
	chunk MNVChunk
}

func newGobMNVWriter(w io.WriteCloser) *gobMNVWriter {
	bufw := bufio.NewWriterSize(w, 1<<20)
	return &gobMNVWriter{w: w, bufw: bufw, enc: gob.NewEncoder(bufw)}
}

func (gw *gobMNVWriter) Write(rec *MNVRecord) error {
	gw.chunk.Records = append(gw.chunk.Records, *rec)
	if len(gw.chunk.Records) < gobChunkSize {
		return nil
	}
	return gw.flushChunk()
}

func (gw *gobMNVWriter) flushChunk() error {
	if len(gw.chunk.Records) == 0 {
		return nil
	}
	err := gw.enc.Encode(gw.chunk)
	gw.chunk.Records = gw.chunk.Records[:0]
	return err
}

func (gw *gobMNVWriter) Close() error {
	err := gw.flushChunk()
	if err == nil {
		err = gw.bufw.Flush()
	}
	if err != nil {
		gw.w.Close()
		return err
	}
	return gw.w.Close()
}

func readGobMNVTable(rdr io.Reader, fn func(*MNVRecord) error) error {
	dec := gob.NewDecoder(bufio.NewReaderSize(rdr, 1<<20))
	for {
		var chunk MNVChunk
		err := dec.Decode(&chunk)
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		for i := range chunk.Records {
			if err := fn(&chunk.Records[i]); err != nil {
				return err
			}
		}
	}
}

// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runlog persists and resumes a bfs500 run's fixed-layout record
// (spec §6 "Run log"), gzip-compressed, to a path that may be local or
// s3://, the same file.Open/file.Create seam
// encoding/pam/pamutil.ReadShardIndex/WriteShardIndex use for index files
// that may live on S3.
package runlog

import (
	"context"

	"github.com/grailbio/base/file"
	"github.com/grailbio/bfs500/wire"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ErrParamMismatch is returned (wrapped) by CheckResume when a resumed log's
// scale/edge-factor/process-count doesn't match the current run's, a
// fatal error per spec §6.
var ErrParamMismatch = errors.New("runlog: scale/edge_factor/mpi_size mismatch against resumed log")

// Load reads and decompresses the record at path, or returns (nil, nil) if
// path is empty (spec §6: "absent ⇒ no log").
func Load(ctx context.Context, path string) (*wire.RunLogRecord, error) {
	if path == "" {
		return nil, nil
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "runlog: open %s", path)
	}
	defer file.CloseAndReport(ctx, in, &err)

	gz, err := gzip.NewReader(in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "runlog: gzip reader %s", path)
	}
	defer gz.Close()

	var rec wire.RunLogRecord
	if _, err := rec.ReadFrom(gz); err != nil {
		return nil, errors.Wrapf(err, "runlog: decode %s", path)
	}
	return &rec, nil
}

// CheckResume validates that a resumed record's configuration matches the
// current run's, per spec §6's fatal-error rule.
func CheckResume(rec *wire.RunLogRecord, scale, edgeFactor, mpiSize int32) error {
	if rec == nil {
		return nil
	}
	if rec.Scale != scale || rec.EdgeFactor != edgeFactor || rec.MPISize != mpiSize {
		return errors.Wrapf(ErrParamMismatch, "resumed scale=%d edge_factor=%d mpi_size=%d, want %d/%d/%d",
			rec.Scale, rec.EdgeFactor, rec.MPISize, scale, edgeFactor, mpiSize)
	}
	return nil
}

// Save gzip-compresses and writes rec to path. An empty path is a no-op,
// matching Load's "absent LOGFILE" convention.
func Save(ctx context.Context, path string, rec *wire.RunLogRecord) (err error) {
	if path == "" {
		return nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "runlog: create %s", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(out.Writer(ctx))
	if _, err = rec.WriteTo(gz); err != nil {
		return errors.Wrapf(err, "runlog: encode %s", path)
	}
	if err = gz.Close(); err != nil {
		return errors.Wrapf(err, "runlog: flush gzip %s", path)
	}
	return nil
}

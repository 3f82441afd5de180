// Copyright 2026 The kvidxkit Authors
// This file is part of kvidxkit.
//
// kvidxkit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvidxkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvidxkit. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ExportFormat selects the on-disk representation for export/import.
type ExportFormat string

const (
	FormatBinary ExportFormat = "binary"
	FormatJSON   ExportFormat = "json"
	FormatCSV    ExportFormat = "csv"
)

// binaryMagic and binaryVersion are the canonical binary export header
// fields of spec §6: magic = 0x5844495645564B00, written little-endian as
// the bytes "\x00KVEVIDX"; version = 1.
const (
	binaryMagic   uint64 = 0x5844495645564B00
	binaryVersion uint32 = 1
)

// ExportOptions configures export.
type ExportOptions struct {
	Format ExportFormat

	HasStartKey bool
	StartKey    uint64
	HasEndKey   bool
	EndKey      uint64

	// IncludeMetadata controls whether JSON/CSV output carries term/cmd.
	// The binary format always carries them.
	IncludeMetadata bool
	PrettyPrint     bool
}

// ImportOptions configures import.
type ImportOptions struct {
	Format            ExportFormat
	ClearBeforeImport bool
	SkipDuplicates    bool
}

// ProgressCallback is polled every 100 entries during export/import;
// returning false requests cooperative cancellation at the next such
// boundary (spec §5).
type ProgressCallback func(done, total uint64) bool

const progressBatchSize = 100

func (o ExportOptions) keyRange() (lo, hi uint64) {
	lo = 0
	hi = maxU64
	if o.HasStartKey {
		lo = o.StartKey
	}
	if o.HasEndKey {
		hi = o.EndKey
	}
	return lo, hi
}

// Export writes every live entry in [start-key, end-key] to path in the
// requested format.
func (h *Handle) Export(path string, opts ExportOptions, progress ProgressCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}

	lo, hi := opts.keyRange()
	cur, err := h.adapter.Iterator(lo, hi, Forward)
	if err != nil {
		return h.recordErr(err)
	}
	defer cur.Close()

	var entries []Entry
	for cur.Next() {
		entries = append(entries, cur.Entry().Clone())
	}
	if err := cur.Err(); err != nil {
		return h.recordErr(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return h.recordErr(IOError(err, "create export file %q", path))
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	var writeErr error
	total := uint64(len(entries))
	switch opts.Format {
	case FormatJSON:
		writeErr = writeJSON(w, entries, opts, progress, total)
	case FormatCSV:
		writeErr = writeCSV(w, entries, opts, progress, total)
	case FormatBinary, "":
		writeErr = writeBinary(w, entries, progress, total)
	default:
		writeErr = InvalidArgument("unknown export format %q", opts.Format)
	}
	if writeErr != nil {
		return h.recordErr(writeErr)
	}
	if err := w.Flush(); err != nil {
		return h.recordErr(IOError(err, "flush export file %q", path))
	}
	return nil
}

func writeBinary(w *bufio.Writer, entries []Entry, progress ProgressCallback, total uint64) error {
	var hdr [24]byte
	binary.LittleEndian.PutUint64(hdr[0:8], binaryMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], binaryVersion)
	binary.LittleEndian.PutUint32(hdr[12:16], 0)
	binary.LittleEndian.PutUint64(hdr[16:24], total)
	if _, err := w.Write(hdr[:]); err != nil {
		return IOError(err, "write binary export header")
	}
	for i, e := range entries {
		var rec [32]byte
		binary.LittleEndian.PutUint64(rec[0:8], e.Key)
		binary.LittleEndian.PutUint64(rec[8:16], e.Term)
		binary.LittleEndian.PutUint64(rec[16:24], e.Cmd)
		binary.LittleEndian.PutUint64(rec[24:32], uint64(len(e.Data)))
		if _, err := w.Write(rec[:]); err != nil {
			return IOError(err, "write binary export record")
		}
		if _, err := w.Write(e.Data); err != nil {
			return IOError(err, "write binary export data")
		}
		if shouldCancel(progress, i, total) {
			return ErrCancelled
		}
	}
	return nil
}

func writeJSON(w *bufio.Writer, entries []Entry, opts ExportOptions, progress ProgressCallback, total uint64) error {
	nl, indent := "", ""
	if opts.PrettyPrint {
		nl, indent = "\n", "  "
	}
	fmt.Fprintf(w, `{"format":"kvidx-json","version":1,"entries":[%s`, nl)
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintf(w, ",%s", nl)
		}
		fmt.Fprintf(w, "%s{", indent)
		fmt.Fprintf(w, `"key":%d`, e.Key)
		if opts.IncludeMetadata {
			fmt.Fprintf(w, `,"term":%d,"cmd":%d`, e.Term, e.Cmd)
		}
		fmt.Fprintf(w, `,"data":"%s"}`, jsonEscapeBytes(e.Data))
		if shouldCancel(progress, i, total) {
			fmt.Fprintf(w, "%s]}", nl)
			return ErrCancelled
		}
	}
	fmt.Fprintf(w, "%s]}", nl)
	return nil
}

// jsonEscapeBytes renders data as a JSON string, byte-for-byte: each byte
// is treated as one code point (this is a lossy, binary-unsafe encoding
// for genuinely non-ASCII payloads, documented in spec §6), with standard
// JSON escapes plus \uXXXX for bytes < 32 and byte 127.
func jsonEscapeBytes(data []byte) string {
	var sb strings.Builder
	for _, c := range data {
		switch c {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 32 || c == 127 {
				fmt.Fprintf(&sb, `\u%04x`, c)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

func writeCSV(w *bufio.Writer, entries []Entry, opts ExportOptions, progress ProgressCallback, total uint64) error {
	cw := csv.NewWriter(w)
	header := []string{"key", "data"}
	if opts.IncludeMetadata {
		header = []string{"key", "term", "cmd", "data"}
	}
	if err := cw.Write(header); err != nil {
		return IOError(err, "write csv header")
	}
	for i, e := range entries {
		var row []string
		if opts.IncludeMetadata {
			row = []string{
				strconv.FormatUint(e.Key, 10),
				strconv.FormatUint(e.Term, 10),
				strconv.FormatUint(e.Cmd, 10),
				string(e.Data),
			}
		} else {
			row = []string{strconv.FormatUint(e.Key, 10), string(e.Data)}
		}
		if err := cw.Write(row); err != nil {
			return IOError(err, "write csv row")
		}
		if shouldCancel(progress, i, total) {
			cw.Flush()
			return ErrCancelled
		}
	}
	cw.Flush()
	return cw.Error()
}

func shouldCancel(progress ProgressCallback, i int, total uint64) bool {
	if progress == nil {
		return false
	}
	if (i+1)%progressBatchSize != 0 {
		return false
	}
	return !progress(uint64(i+1), total)
}

// Import reads path in the requested format and inserts its entries.
// Only the binary format is guaranteed to round-trip losslessly (spec §6).
func (h *Handle) Import(path string, opts ImportOptions, progress ProgressCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}

	if opts.ClearBeforeImport {
		if _, err := h.adapter.RemoveAfterInclusive(0); err != nil {
			return h.recordErr(err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return h.recordErr(IOError(err, "open import file %q", path))
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var entries []Entry
	switch opts.Format {
	case FormatBinary, "":
		entries, err = readBinary(r)
	case FormatJSON:
		entries, err = readJSON(r)
	case FormatCSV:
		entries, err = readCSV(r)
	default:
		err = InvalidArgument("unknown import format %q", opts.Format)
	}
	if err != nil {
		return h.recordErr(err)
	}

	total := uint64(len(entries))
	for i, e := range entries {
		insErr := h.adapter.Insert(e.Key, e.Term, e.Cmd, e.Data)
		if insErr != nil {
			if opts.SkipDuplicates && KindOf(insErr) == KindDuplicateKey {
				// skip silently
			} else {
				return h.recordErr(insErr)
			}
		}
		if shouldCancel(progress, i, total) {
			return h.recordErr(ErrCancelled)
		}
	}
	return nil
}

func readBinary(r *bufio.Reader) ([]Entry, error) {
	var hdr [24]byte
	if _, err := ioReadFull(r, hdr[:]); err != nil {
		return nil, IOError(err, "read binary import header")
	}
	magic := binary.LittleEndian.Uint64(hdr[0:8])
	if magic != binaryMagic {
		return nil, InvalidArgument("not a kvidxkit binary export (bad magic)")
	}
	count := binary.LittleEndian.Uint64(hdr[16:24])
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var rec [32]byte
		if _, err := ioReadFull(r, rec[:]); err != nil {
			return nil, IOError(err, "read binary import record %d", i)
		}
		e := Entry{
			Key:  binary.LittleEndian.Uint64(rec[0:8]),
			Term: binary.LittleEndian.Uint64(rec[8:16]),
			Cmd:  binary.LittleEndian.Uint64(rec[16:24]),
		}
		dataLen := binary.LittleEndian.Uint64(rec[24:32])
		if dataLen > 0 {
			e.Data = make([]byte, dataLen)
			if _, err := ioReadFull(r, e.Data); err != nil {
				return nil, IOError(err, "read binary import data %d", i)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func ioReadFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func readJSON(r *bufio.Reader) ([]Entry, error) {
	return nil, NotSupported("json import is not implemented; json export is documented lossy and not required to round-trip")
}

func readCSV(r *bufio.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, IOError(err, "read csv import")
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	withMeta := len(header) == 4
	entries := make([]Entry, 0, len(records)-1)
	for _, row := range records[1:] {
		var e Entry
		key, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return nil, InvalidArgument("csv import: bad key %q", row[0])
		}
		e.Key = key
		if withMeta {
			term, _ := strconv.ParseUint(row[1], 10, 64)
			cmd, _ := strconv.ParseUint(row[2], 10, 64)
			e.Term, e.Cmd = term, cmd
			e.Data = []byte(row[3])
		} else {
			e.Data = []byte(row[1])
		}
		entries = append(entries, e)
	}
	return entries, nil
}

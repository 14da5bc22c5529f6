package manifest

import (
	"encoding/binary"
	"fmt"
)

// MBDBFile is the file name of the legacy binary manifest.
const MBDBFile = "Manifest.mbdb"

const (
	mbdbMagic = "mbdb\x05\x00"

	// Opaque per-record attributes following the mode. The last byte is
	// the number of extended property pairs that follow.
	mbdbAttrLen = 38

	mbdbAbsent = 0xffff

	modeTypeMask = 0xf000
	modeRegular  = 0x8000
)

// Record strings after domain and relative path that are read only to
// keep the cursor aligned.
var opaqueFields = [...]string{"string 3", "string 4", "string 5"}

// mbdbRecord holds the fields of a binary manifest record that matter
// for restoration. Everything else is skipped.
type mbdbRecord struct {
	offset       int
	domain       []byte
	relativePath []byte
	mode         uint16
}

func (r mbdbRecord) isRegular() bool {
	return r.mode&modeTypeMask == modeRegular
}

// mbdbReader is a bounds-checked cursor over a binary manifest.
type mbdbReader struct {
	buf []byte
	off int
}

func (r *mbdbReader) truncated(field string) error {
	return fmt.Errorf("%w: reading %s at offset %d of %d", ErrTruncated, field, r.off, len(r.buf))
}

func (r *mbdbReader) uint16(field string) (uint16, error) {
	if len(r.buf)-r.off < 2 {
		return 0, r.truncated(field)
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

// bytes reads a length-prefixed string. An absent string yields nil.
func (r *mbdbReader) bytes(field string) ([]byte, error) {
	n, err := r.uint16(field + " length")
	if err != nil {
		return nil, err
	}
	if n == mbdbAbsent {
		return nil, nil
	}
	if len(r.buf)-r.off < int(n) {
		return nil, r.truncated(field)
	}
	b := r.buf[r.off : r.off+int(n) : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *mbdbReader) skip(n int, field string) ([]byte, error) {
	if len(r.buf)-r.off < n {
		return nil, r.truncated(field)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *mbdbReader) record() (mbdbRecord, error) {
	rec := mbdbRecord{offset: r.off}

	var err error
	if rec.domain, err = r.bytes("domain"); err != nil {
		return rec, err
	}
	if rec.relativePath, err = r.bytes("relative path"); err != nil {
		return rec, err
	}
	for _, field := range opaqueFields {
		if _, err := r.bytes(field); err != nil {
			return rec, err
		}
	}
	if rec.mode, err = r.uint16("mode"); err != nil {
		return rec, err
	}

	attrs, err := r.skip(mbdbAttrLen, "attributes")
	if err != nil {
		return rec, err
	}
	for i := 0; i < int(attrs[mbdbAttrLen-1]); i++ {
		if _, err := r.bytes("property name"); err != nil {
			return rec, err
		}
		if _, err := r.bytes("property value"); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// DecodeMBDB parses a binary manifest and returns one entry per regular
// file record, in record order. Directories, symlinks and other record
// types are consumed but dropped. On any error no entries are returned.
func DecodeMBDB(buf []byte) ([]Entry, error) {
	if len(buf) < len(mbdbMagic) {
		return nil, fmt.Errorf("%w: reading magic at offset 0 of %d", ErrTruncated, len(buf))
	}
	if string(buf[:len(mbdbMagic)]) != mbdbMagic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, buf[:len(mbdbMagic)])
	}

	r := &mbdbReader{buf: buf, off: len(mbdbMagic)}
	var entries []Entry
	for r.off < len(r.buf) {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		if !rec.isRegular() {
			continue
		}

		e := Entry{
			Domain:       string(rec.domain),
			RelativePath: string(rec.relativePath),
		}
		e.FileID = FileID(e.Domain, e.RelativePath)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", rec.offset, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

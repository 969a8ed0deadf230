// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bam

import (
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/mlange-dev/bamra/internal/errs"
	"github.com/mlange-dev/bamra/randomaccessmanager"
	"github.com/mlange-dev/bamra/sam"
)

// Omit controls how much of a record is reconstructed from its binary
// encoding. Skipping variable-length fields a caller doesn't need avoids
// both the allocation and the parse.
type Omit int

const (
	None                  Omit = iota // decode the full record
	AuxTags                           // skip auxiliary tag data
	AllVariableLengthData             // skip sequence, quality and auxiliary data
)

// bamRecordFixed mirrors the fixed-length prefix of a binary BAM
// alignment record, used only to size bamFixedRemainder.
type bamRecordFixed struct {
	refID     int32
	pos       int32
	nLen      uint8
	mapQ      uint8
	bin       uint16
	nCigar    uint16
	flags     sam.Flags
	lSeq      int32
	nextRefID int32
	nextPos   int32
	tLen      int32
}

// bamFixedRemainder is the size, in bytes, of a record body preceding its
// variable-length name/cigar/seq/qual/aux fields.
var bamFixedRemainder = binary.Size(bamRecordFixed{})

var errRecordTooSmall = recordError("bam: record shorter than its fixed fields")
var errRefOutOfRange = recordError("bam: reference id out of range")
var errTruncatedField = recordError("bam: truncated variable-length field")
var errCorruptAux = recordError("bam: malformed auxiliary field")

type recordError string

func (e recordError) Error() string { return string(e) }

// RecordDecoder decodes binary BAM alignment records, resolving reference
// IDs against a shared sam.Header. It implements
// randomaccessmanager.RecordDecoder, letting randomaccessmanager.Query
// drive it directly.
type RecordDecoder struct {
	Header *sam.Header
	Omit   Omit
}

// NewRecordDecoder returns a RecordDecoder resolving references against h.
func NewRecordDecoder(h *sam.Header) *RecordDecoder {
	return &RecordDecoder{Header: h}
}

// Decode reads one alignment record from r.
func (d *RecordDecoder) Decode(r *randomaccessmanager.Stream) (randomaccessmanager.Record, error) {
	rec, err := decodeRecord(r, d.Header, d.Omit)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// decodeRecord reads one binary BAM alignment record from r. It returns
// io.EOF, unwrapped, when r is exhausted exactly at a record boundary;
// any other failure is tagged via the errs taxonomy.
func decodeRecord(r io.Reader, h *sam.Header, omit Omit) (*sam.Record, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errs.New(errs.UnexpectedEof, "bam: reading record block size", err)
	}
	size := int(int32(binary.LittleEndian.Uint32(sizeBuf[:])))
	if size < bamFixedRemainder {
		return nil, errs.New(errs.CorruptRecord, "bam: parsing record", errRecordTooSmall)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errs.New(errs.UnexpectedEof, "bam: reading record body", err)
	}

	b := &buffer{data: body}
	var rec sam.Record
	refID := b.readInt32()
	rec.Pos = int(b.readUint32())
	nLen := b.readUint8()
	rec.MapQ = b.readUint8()
	b.discard(2) // bin; sam.Record.Bin recomputes it on demand
	nCigar := b.readUint16()
	rec.Flags = sam.Flags(b.readUint16())
	lSeq := int32(b.readUint32())
	nextRefID := b.readInt32()
	rec.MatePos = int(b.readInt32())
	rec.TempLen = int(b.readInt32())

	if int(nLen) < 1 || b.len() < int(nLen) {
		return nil, errs.New(errs.CorruptRecord, "bam: parsing record name", errTruncatedField)
	}
	rec.Name = string(b.bytes(int(nLen) - 1))
	b.discard(1)

	if b.len() < int(nCigar)*4 {
		return nil, errs.New(errs.CorruptRecord, "bam: parsing cigar", errTruncatedField)
	}
	rec.Cigar = readCigarOps(b.bytes(int(nCigar) * 4))

	if omit < AllVariableLengthData {
		seqBytes := int(lSeq+1) >> 1
		if lSeq < 0 || b.len() < seqBytes+int(lSeq) {
			return nil, errs.New(errs.CorruptRecord, "bam: parsing sequence", errTruncatedField)
		}
		seq := make(doublets, seqBytes)
		copy(seq.Bytes(), b.bytes(seqBytes))
		rec.Seq = sam.Seq{Length: int(lSeq), Seq: []sam.Doublet(seq)}
		rec.Qual = append([]byte(nil), b.bytes(int(lSeq))...)

		if omit < AuxTags {
			aux, err := parseAux(b.bytes(b.len()))
			if err != nil {
				return nil, errs.New(errs.CorruptRecord, "bam: parsing auxiliary fields", err)
			}
			rec.AuxFields = aux
		}
	}

	refs := int32(len(h.Refs()))
	if refID != -1 {
		if refID < -1 || refID >= refs {
			return nil, errs.New(errs.CorruptRecord, "bam: resolving reference", errRefOutOfRange)
		}
		rec.Ref = h.Refs()[refID]
	}
	if nextRefID != -1 {
		if refID == nextRefID {
			rec.MateRef = rec.Ref
			return &rec, nil
		}
		if nextRefID < -1 || nextRefID >= refs {
			return nil, errs.New(errs.CorruptRecord, "bam: resolving mate reference", errRefOutOfRange)
		}
		rec.MateRef = h.Refs()[nextRefID]
	}

	return &rec, nil
}

// len(cb) must be a multiple of 4.
func readCigarOps(cb []byte) sam.Cigar {
	co := make(sam.Cigar, len(cb)/4)
	for i := range co {
		co[i] = sam.CigarOp(binary.LittleEndian.Uint32(cb[i*4 : (i+1)*4]))
	}
	return co
}

var jumps = [256]int{
	'A': 1,
	'c': 1, 'C': 1,
	's': 2, 'S': 2,
	'i': 4, 'I': 4,
	'f': 4,
	'Z': -1,
	'H': -1,
	'B': -1,
}

// parseAux examines the data of a SAM record's OPT fields, returning a
// slice of sam.Aux backed by the original data. A tag with an unrecognised
// type, or whose declared length runs past the end of aux, is reported as
// an error rather than trusted.
func parseAux(aux []byte) ([]sam.Aux, error) {
	if len(aux) == 0 {
		return nil, nil
	}
	aa := make([]sam.Aux, 0, 4)
	for i := 0; i+2 < len(aux); {
		t := aux[i+2]
		switch j := jumps[t]; {
		case j > 0:
			j += 3
			if i+j > len(aux) {
				return nil, errCorruptAux
			}
			aa = append(aa, sam.Aux(aux[i:i+j:i+j]))
			i += j
		case j < 0:
			switch t {
			case 'Z', 'H':
				var (
					j          int
					v          byte
					terminated bool
				)
				for j, v = range aux[i:] {
					if v == 0 { // C string termination
						terminated = true
						break // Truncate terminal zero.
					}
				}
				if !terminated {
					return nil, errCorruptAux
				}
				aa = append(aa, sam.Aux(aux[i:i+j:i+j]))
				i += j + 1
			case 'B':
				if i+8 > len(aux) {
					return nil, errCorruptAux
				}
				length := int32(binary.LittleEndian.Uint32(aux[i+4 : i+8]))
				elemSize := jumps[aux[i+3]]
				if length < 0 || elemSize <= 0 {
					return nil, errCorruptAux
				}
				j = int(length)*elemSize + int(unsafe.Sizeof(length)) + 4
				if j < 0 || i+j > len(aux) {
					return nil, errCorruptAux
				}
				aa = append(aa, sam.Aux(aux[i:i+j:i+j]))
				i += j
			default:
				return nil, errCorruptAux
			}
		default:
			return nil, errCorruptAux
		}
	}
	return aa, nil
}

// buffer is a light-weight read cursor over an already-read record body.
type buffer struct {
	off  int
	data []byte
}

func (b *buffer) bytes(n int) []byte {
	s := b.off
	b.off += n
	return b.data[s:b.off]
}

func (b *buffer) len() int {
	return len(b.data) - b.off
}

func (b *buffer) discard(n int) {
	b.off += n
}

func (b *buffer) readUint8() uint8 {
	b.off++
	return b.data[b.off-1]
}

func (b *buffer) readUint16() uint16 {
	return binary.LittleEndian.Uint16(b.bytes(2))
}

func (b *buffer) readInt32() int32 {
	return int32(binary.LittleEndian.Uint32(b.bytes(4)))
}

func (b *buffer) readUint32() uint32 {
	return binary.LittleEndian.Uint32(b.bytes(4))
}

// doublets is the packed nybble encoding backing a sam.Seq, exposed as
// raw bytes so record bodies can be copied in directly rather than
// unpacked base by base.
type doublets []sam.Doublet

func (np doublets) Bytes() []byte { return *(*[]byte)(unsafe.Pointer(&np)) }

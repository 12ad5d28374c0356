// Package row defines the value type stored by the concrete indexes: a row of
// opaque byte columns, plus its projection and wire encoding.
//
// Wire format: every column is emitted as protobuf field 1, length-delimited,
// in column order. An empty row encodes to an empty byte slice.
package row

import (
	"bytes"
	"slices"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const columnField protowire.Number = 1

// Row is one stored value, split into columns.
type Row [][]byte

// FromStrings builds a row with one column per string.
func FromStrings(cols ...string) Row {
	r := make(Row, len(cols))
	for i, c := range cols {
		r[i] = []byte(c)
	}
	return r
}

// Project returns a new row holding only the given columns, in the given
// order. Column indexes outside the row yield a nil column.
func (r Row) Project(columns []int) Row {
	out := make(Row, len(columns))
	for i, c := range columns {
		if c >= 0 && c < len(r) {
			out[i] = r[c]
		}
	}
	return out
}

func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for i, c := range r {
		out[i] = slices.Clone(c)
	}
	return out
}

func (r Row) Equal(o Row) bool {
	return slices.EqualFunc(r, o, bytes.Equal)
}

// Size is the encoded length of the row in bytes.
func (r Row) Size() int {
	n := 0
	for _, c := range r {
		n += protowire.SizeTag(columnField) + protowire.SizeBytes(len(c))
	}
	return n
}

// ─── Codec ────────────────────────────────────────────────────────────────────

func Encode(r Row) []byte {
	b := make([]byte, 0, r.Size())
	return AppendEncoded(b, r)
}

// AppendEncoded appends the encoding of r to b.
func AppendEncoded(b []byte, r Row) []byte {
	for _, c := range r {
		b = protowire.AppendTag(b, columnField, protowire.BytesType)
		b = protowire.AppendBytes(b, c)
	}
	return b
}

func Decode(b []byte) (Row, error) {
	var r Row
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "row: decode tag")
		}
		if num != columnField || typ != protowire.BytesType {
			return nil, errors.Newf("row: decode: unexpected field %d (wire type %d)", num, typ)
		}
		b = b[n:]
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "row: decode column %d", len(r))
		}
		r = append(r, slices.Clone(v))
		b = b[n:]
	}
	return r, nil
}

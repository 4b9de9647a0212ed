// binarymem.go - Binaerformat-Parser aus 32-Bit-ausgerichtetem Speicher
//
// Identisch zu binary.go, aber ueber einen Byte-Slice gelesen, dessen
// Anfang 32-Bit-ausgerichtet sein muss (typischerweise ein mmap'ter
// Puffer, siehe modelbin.MMapSource). Der Aufrufer erhaelt die Anzahl
// der konsumierten Bytes zurueck, um Aufrufe zu verketten.
//
// Jeder Fehlerpfad liefert einen eigenen Error{Kind: KindBadParam}
// zurueck, nie eine blosse 0.
package paramdict

import (
	"bytes"
	"reflect"

	"github.com/nnexec/netcore/errs"
)

// isAligned32 reports whether buf's backing array starts on a 4-byte boundary.
func isAligned32(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	return reflect.ValueOf(&buf[0]).Pointer()%4 == 0
}

// ReadBinaryAligned parses one record from buf, which must be 32-bit
// aligned, returning the parsed record and the number of bytes consumed.
func ReadBinaryAligned(buf []byte) (*ParamDict, int, error) {
	if !isAligned32(buf) {
		return nil, 0, errs.New("paramdict.ReadBinaryAligned", errs.KindBadParam,
			errAlignment)
	}

	r := bytes.NewReader(buf)
	pd, err := ReadBinary(r)
	if err != nil {
		return nil, 0, errs.New("paramdict.ReadBinaryAligned", errs.KindBadParam, err)
	}

	consumed := len(buf) - r.Len()
	return pd, consumed, nil
}

var errAlignment = alignmentError{}

type alignmentError struct{}

func (alignmentError) Error() string { return "buffer is not 32-bit aligned" }

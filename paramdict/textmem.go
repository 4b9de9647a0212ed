// textmem.go - Textformat-Parser aus einem Speicherpuffer
//
// Identische Grammatik wie text.go, aber gelesen aus einem
// Byte-Slice; der Aufrufer erhaelt die Anzahl der konsumierten Bytes
// zurueck, um seinen eigenen Cursor weiterzuruecken.
package paramdict

import (
	"bytes"
)

// ReadTextMem parses one record starting at buf[0], returning the
// parsed record and the number of bytes consumed (including the
// terminating newline, if present).
func ReadTextMem(buf []byte) (*ParamDict, int, error) {
	nl := bytes.IndexByte(buf, '\n')
	var line []byte
	consumed := len(buf)
	if nl >= 0 {
		line = buf[:nl]
		consumed = nl + 1
	} else {
		line = buf
	}

	pd, err := parseTextLine(string(line))
	if err != nil {
		return nil, 0, err
	}
	return pd, consumed, nil
}

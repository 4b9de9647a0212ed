package graph

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nnexec/netcore/paramdict"
)

// WriteParam serializes the graph back into the text topology format,
// the inverse of LoadParam, so that parsing, re-serializing, and
// re-parsing yields an isomorphic graph. Layers whose slot is null are
// re-emitted with their original type/name/blob wiring; their param
// record is written when it parsed (a load_param failure) and left
// empty when the record itself failed to parse.
func (n *Net) WriteParam(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d\n", MagicNumber); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d %d\n", len(n.Layers), len(n.Blobs)); err != nil {
		return err
	}

	for _, rec := range n.Layers {
		fields := []string{rec.TypeName, rec.Name,
			strconv.Itoa(len(rec.Bottoms)), strconv.Itoa(len(rec.Tops))}
		for _, bi := range rec.Bottoms {
			fields = append(fields, n.Blobs[bi].Name)
		}
		for _, ti := range rec.Tops {
			fields = append(fields, n.Blobs[ti].Name)
		}

		line := strings.Join(fields, " ")
		if rec.Param != nil {
			var buf bytes.Buffer
			if err := paramdict.WriteText(&buf, rec.Param); err != nil {
				return err
			}
			if tail := strings.TrimRight(buf.String(), "\n"); tail != "" {
				line += " " + tail
			}
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

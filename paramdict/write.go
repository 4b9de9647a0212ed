// write.go - Text-Serialisierung (Inverse von text.go)
//
// Parsen eines Textparams, Re-Serialisieren und erneutes Parsen muss
// denselben logischen Graphen ergeben. Keys werden in
// Einfuegereihenfolge geschrieben, da ParamDict intern eine
// OrderedMap verwendet.
package paramdict

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteText serializes pd as one text-format line, including the
// terminating newline.
func WriteText(w io.Writer, pd *ParamDict) error {
	var sb strings.Builder
	first := true
	for pair := pd.values.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			sb.WriteByte(' ')
		}
		first = false

		e := pair.Value
		if e.isArray {
			sb.WriteString(strconv.Itoa(arrayKeyBase - pair.Key))
			sb.WriteByte('=')
			if e.isFloat {
				sb.WriteString(strconv.Itoa(len(e.floats)))
				for _, f := range e.floats {
					sb.WriteByte(',')
					sb.WriteString(formatFloat(f))
				}
			} else {
				sb.WriteString(strconv.Itoa(len(e.ints)))
				for _, n := range e.ints {
					sb.WriteByte(',')
					sb.WriteString(strconv.FormatInt(n, 10))
				}
			}
			continue
		}

		sb.WriteString(strconv.Itoa(pair.Key))
		sb.WriteByte('=')
		if e.isFloat {
			sb.WriteString(formatFloat(e.floats[0]))
		} else {
			sb.WriteString(strconv.FormatInt(e.ints[0], 10))
		}
	}
	sb.WriteByte('\n')

	_, err := fmt.Fprint(w, sb.String())
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

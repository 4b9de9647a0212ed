// text.go - Textformat-Parser (io.Reader Variante)
//
// Grammatik: whitespace-separated "key=value" Tokens, terminiert durch
// Newline. Ein Array-Token hat key <= -23300 (siehe paramdict.go) und
// value der Form "count,v1,v2,...".
package paramdict

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/nnexec/netcore/errs"
)

// ReadText parses one per-layer record from a text stream, up to and
// including the terminating newline.
func ReadText(r *bufio.Reader) (*ParamDict, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return parseTextLine(line)
}

func parseTextLine(line string) (*ParamDict, error) {
	pd := New()
	fields := strings.Fields(line)
	for _, tok := range fields {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, errs.New("paramdict.ReadText", errs.KindBadParam,
				fmt.Errorf("malformed token %q: missing '='", tok))
		}

		wireKey, err := strconv.Atoi(key)
		if err != nil {
			return nil, errs.New("paramdict.ReadText", errs.KindBadParam,
				fmt.Errorf("malformed key %q: %w", key, err))
		}

		if err := setFromTextValue(pd, wireKey, value); err != nil {
			return nil, err
		}
	}
	return pd, nil
}

// setFromTextValue decides scalar int vs float by key parity (even =>
// int, odd => float) - the same convention the binary reader applies,
// so text and binary loading of the same logical record agree.
func setFromTextValue(pd *ParamDict, wireKey int, value string) error {
	if wireKey <= arrayKeyBase {
		id := arrayKeyBase - wireKey
		return setArrayFromText(pd, id, value)
	}

	if wireKey%2 != 0 {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errs.New("paramdict.ReadText", errs.KindBadParam,
				fmt.Errorf("malformed float value %q for key %d: %w", value, wireKey, err))
		}
		pd.SetFloat(wireKey, f)
		return nil
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return errs.New("paramdict.ReadText", errs.KindBadParam,
			fmt.Errorf("malformed int value %q for key %d: %w", value, wireKey, err))
	}
	pd.SetInt(wireKey, n)
	return nil
}

func setArrayFromText(pd *ParamDict, id int, value string) error {
	parts := strings.Split(value, ",")
	if len(parts) == 0 {
		return errs.New("paramdict.ReadText", errs.KindBadParam,
			fmt.Errorf("empty array value for key %d", id))
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return errs.New("paramdict.ReadText", errs.KindBadParam,
			fmt.Errorf("malformed array count %q for key %d: %w", parts[0], id, err))
	}
	elems := parts[1:]
	if len(elems) != count {
		return errs.New("paramdict.ReadText", errs.KindBadParam,
			fmt.Errorf("array key %d declares %d elements, got %d", id, count, len(elems)))
	}
	if count == 0 {
		pd.SetInts(id, nil)
		return nil
	}

	if id%2 != 0 {
		floats, err := parseFloats(elems)
		if err != nil {
			return errs.New("paramdict.ReadText", errs.KindBadParam,
				fmt.Errorf("malformed float array for key %d: %w", id, err))
		}
		pd.SetFloats(id, floats)
		return nil
	}

	ints, err := parseInts(elems)
	if err != nil {
		return errs.New("paramdict.ReadText", errs.KindBadParam,
			fmt.Errorf("malformed int array for key %d: %w", id, err))
	}
	pd.SetInts(id, ints)
	return nil
}

func parseInts(elems []string) ([]int64, error) {
	out := make([]int64, len(elems))
	for i, e := range elems {
		n, err := strconv.ParseInt(e, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(elems []string) ([]float64, error) {
	out := make([]float64, len(elems))
	for i, e := range elems {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

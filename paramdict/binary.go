// binary.go - Binaerformat-Parser (io.Reader Variante)
//
// Eine Record ist eine Folge von (key:i32, value) Tripeln, terminiert
// durch den Sentinel-Key -233. Negative Keys (ausser dem Sentinel)
// kodieren Arrays nach derselben -23300-id Konvention wie das
// Textformat (siehe paramdict.go), sodass beide Formate dieselbe
// ParamDict erzeugen (Format-Equivalenz).
package paramdict

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nnexec/netcore/errs"
)

// ReadBinary parses one per-layer record from a binary stream.
func ReadBinary(r io.Reader) (*ParamDict, error) {
	pd := New()
	for {
		var wireKey int32
		if err := binary.Read(r, binary.LittleEndian, &wireKey); err != nil {
			return nil, errs.New("paramdict.ReadBinary", errs.KindBadParam, err)
		}
		if wireKey == sentinelArray {
			return pd, nil
		}

		if int(wireKey) <= arrayKeyBase {
			id := arrayKeyBase - int(wireKey)
			if err := readBinaryArray(r, pd, id); err != nil {
				return nil, err
			}
			continue
		}

		if err := readBinaryScalar(r, pd, int(wireKey)); err != nil {
			return nil, err
		}
	}
}

func readBinaryScalar(r io.Reader, pd *ParamDict, key int) error {
	if key%2 == 0 {
		var v int32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return errs.New("paramdict.ReadBinary", errs.KindBadParam,
				fmt.Errorf("scalar int for key %d: %w", key, err))
		}
		pd.SetInt(key, int64(v))
		return nil
	}

	var v float32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return errs.New("paramdict.ReadBinary", errs.KindBadParam,
			fmt.Errorf("scalar float for key %d: %w", key, err))
	}
	pd.SetFloat(key, float64(v))
	return nil
}

func readBinaryArray(r io.Reader, pd *ParamDict, id int) error {
	var count int32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return errs.New("paramdict.ReadBinary", errs.KindBadParam,
			fmt.Errorf("array count for key %d: %w", id, err))
	}
	if count < 0 {
		return errs.New("paramdict.ReadBinary", errs.KindBadParam,
			fmt.Errorf("negative array count for key %d", id))
	}

	if id%2 == 0 {
		out := make([]int64, count)
		for i := range out {
			var v int32
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return errs.New("paramdict.ReadBinary", errs.KindBadParam,
					fmt.Errorf("array element %d for key %d: %w", i, id, err))
			}
			out[i] = int64(v)
		}
		pd.SetInts(id, out)
		return nil
	}

	out := make([]float64, count)
	for i := range out {
		var v float32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return errs.New("paramdict.ReadBinary", errs.KindBadParam,
				fmt.Errorf("array element %d for key %d: %w", i, id, err))
		}
		out[i] = float64(v)
	}
	pd.SetFloats(id, out)
	return nil
}

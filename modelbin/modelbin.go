// Package modelbin implements the weight-loading half of the model
// file format: a bare concatenation of weight tensors in the order
// layers request them during LoadModel, each prefixed by a 4-byte
// flag selecting its storage representation.
package modelbin

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/tensor"
)

// Weight storage flags.
const (
	FlagF32  uint32 = 0
	FlagF16  uint32 = 0x01306B47
	FlagBF16 uint32 = 0x01306B46 // this implementation's second quantized-header tag
)

// ModelBin is a cursor over the concatenated weight stream, read
// either from an io.Reader (stream variant) or from a 32-bit-aligned
// in-memory buffer (mmap-friendly variant).
type ModelBin struct {
	r      io.Reader
	mem    []byte
	pos    int
	source *MMapSource // non-nil only for the mmap-backed aligned variant
}

// NewStream wraps an io.Reader as a ModelBin.
func NewStream(r io.Reader) *ModelBin {
	return &ModelBin{r: r}
}

// NewAligned wraps a 32-bit-aligned byte buffer as a ModelBin. The
// caller owns buf's lifetime (e.g. via an MMapSource).
func NewAligned(buf []byte) *ModelBin {
	return &ModelBin{mem: buf}
}

// NewFromMMap opens path and wraps its mapped contents as a ModelBin;
// Close releases the mapping.
func NewFromMMap(path string) (*ModelBin, error) {
	src, err := OpenMMapSource(path)
	if err != nil {
		return nil, errs.New("modelbin.NewFromMMap", errs.KindBadModel, err)
	}
	mb := NewAligned(src.Bytes())
	mb.source = src
	return mb, nil
}

// Close releases any mmap backing this ModelBin. A no-op for the
// stream/plain-memory variants.
func (mb *ModelBin) Close() error {
	if mb.source != nil {
		return mb.source.Close()
	}
	return nil
}

func (mb *ModelBin) readFull(n int) ([]byte, error) {
	if mb.r != nil {
		buf := make([]byte, n)
		if _, err := io.ReadFull(mb.r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	if mb.pos+n > len(mb.mem) {
		return nil, io.ErrUnexpectedEOF
	}
	buf := mb.mem[mb.pos : mb.pos+n]
	mb.pos += n
	return buf, nil
}

func (mb *ModelBin) readFlag() (uint32, error) {
	buf, err := mb.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// LoadTensor reads the next weight tensor of count elements, decoding
// whichever storage representation its flag declares into a float32
// tensor ready for kernel use.
func (mb *ModelBin) LoadTensor(count int, alloc tensor.Allocator) (*tensor.Tensor, error) {
	flag, err := mb.readFlag()
	if err != nil {
		return nil, errs.New("modelbin.LoadTensor", errs.KindBadModel,
			fmt.Errorf("reading weight flag: %w", err))
	}

	switch flag {
	case FlagF32:
		return mb.loadF32(count, alloc)
	case FlagF16:
		return mb.loadF16(count, alloc)
	case FlagBF16:
		return mb.loadBF16(count, alloc)
	default:
		return mb.loadQuantized(flag, count, alloc)
	}
}

func (mb *ModelBin) loadF32(count int, alloc tensor.Allocator) (*tensor.Tensor, error) {
	raw, err := mb.readFull(count * 4)
	if err != nil {
		return nil, errs.New("modelbin.loadF32", errs.KindBadModel, err)
	}
	t := tensor.Create([]int{count}, 4, alloc)
	dst := t.Floats()
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return t, nil
}

func (mb *ModelBin) loadF16(count int, alloc tensor.Allocator) (*tensor.Tensor, error) {
	raw, err := mb.readFull(count * 2)
	if err != nil {
		return nil, errs.New("modelbin.loadF16", errs.KindBadModel, err)
	}
	t := tensor.Create([]int{count}, 4, alloc)
	dst := t.Floats()
	for i := range dst {
		bits := binary.LittleEndian.Uint16(raw[i*2:])
		dst[i] = float16.Frombits(bits).Float32()
	}
	return t, nil
}

func (mb *ModelBin) loadBF16(count int, alloc tensor.Allocator) (*tensor.Tensor, error) {
	raw, err := mb.readFull(count * 2)
	if err != nil {
		return nil, errs.New("modelbin.loadBF16", errs.KindBadModel, err)
	}
	decoded := bfloat16.DecodeFloat32(raw)
	t := tensor.Create([]int{count}, 4, alloc)
	copy(t.Floats(), decoded)
	return t, nil
}

// loadQuantized handles any flag outside the two recognized tags as an
// int8-quantized tensor with a minimal tag-specific header: a single
// float32 per-tensor scale, followed by count signed bytes.
func (mb *ModelBin) loadQuantized(flag uint32, count int, alloc tensor.Allocator) (*tensor.Tensor, error) {
	header, err := mb.readFull(4)
	if err != nil {
		return nil, errs.New("modelbin.loadQuantized", errs.KindBadModel,
			fmt.Errorf("flag 0x%x: reading scale header: %w", flag, err))
	}
	scale := math.Float32frombits(binary.LittleEndian.Uint32(header))

	raw, err := mb.readFull(count)
	if err != nil {
		return nil, errs.New("modelbin.loadQuantized", errs.KindBadModel,
			fmt.Errorf("flag 0x%x: reading %d quantized bytes: %w", flag, count, err))
	}

	t := tensor.Create([]int{count}, 4, alloc)
	dst := t.Floats()
	for i, b := range raw {
		dst[i] = float32(int8(b)) * scale
	}
	return t, nil
}

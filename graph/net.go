// Package graph implements Net, the layer/blob graph loader: it parses
// the ncnn-style text topology format into an ordered layer list and a
// blob table, resolving bottom/top references and handing each layer
// its ParamDict record.
package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nnexec/netcore/backend"
	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/layer"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/paramdict"
)

// MagicNumber is the fixed first token of every .param stream.
const MagicNumber = 7767517

// LayerRecord is one parsed graph node: its resolved type, its
// constructed (or, on a load_param failure, nil) Layer, and the blob
// indices it reads from / writes to.
type LayerRecord struct {
	TypeName string
	Name     string
	TypeIdx  uint32
	Layer    layer.Layer // nil if load_param failed for this layer
	Param    *paramdict.ParamDict
	Bottoms  []int
	Tops     []int
}

// Net owns the graph: the ordered layer list, the blob table, and the
// global optimization toggles snapshotted into every layer's ParamDict.
type Net struct {
	Options paramdict.Options

	registry *layer.Registry

	Layers []*LayerRecord
	Blobs  []Blob

	blobIndex map[string]int
}

// NewNet returns an empty Net with the built-in layer registry.
func NewNet() *Net {
	return &Net{
		registry:  layer.NewRegistry(),
		blobIndex: make(map[string]int),
	}
}

// RegisterCustomLayer exposes the registry's custom-type registration
// to callers assembling a Net before LoadParam.
func (n *Net) RegisterCustomLayer(name string, creator layer.Creator) (uint32, error) {
	return n.registry.RegisterCustom(name, creator)
}

func (n *Net) blobIdx(name string) int {
	if idx, ok := n.blobIndex[name]; ok {
		return idx
	}
	idx := len(n.Blobs)
	n.Blobs = append(n.Blobs, Blob{Name: name, Producer: -1})
	n.blobIndex[name] = idx
	return idx
}

// LoadParam parses the text topology format from r: a magic line, a
// "layer_count blob_count" line, then one line per layer. Malformed
// individual layer records (KindBadParam) are logged and skipped,
// leaving that layer's slot null; an unresolvable layer type
// (KindUnknownLayerType) or a structurally broken header instead abort
// the whole load and reset the Net to empty.
func (n *Net) LoadParam(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		n.reset()
		return errs.New("Net.LoadParam", errs.KindBadModel, fmt.Errorf("empty param stream"))
	}
	magic, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || magic != MagicNumber {
		n.reset()
		return errs.New("Net.LoadParam", errs.KindIncompatibleVersion,
			fmt.Errorf("bad magic %q, want %d", scanner.Text(), MagicNumber))
	}

	if !scanner.Scan() {
		n.reset()
		return errs.New("Net.LoadParam", errs.KindBadModel, fmt.Errorf("missing layer/blob count line"))
	}
	counts := strings.Fields(scanner.Text())
	if len(counts) != 2 {
		n.reset()
		return errs.New("Net.LoadParam", errs.KindBadModel,
			fmt.Errorf("malformed layer/blob count line %q", scanner.Text()))
	}
	layerCount, err1 := strconv.Atoi(counts[0])
	_, err2 := strconv.Atoi(counts[1]) // blobCount is advisory; n.Blobs grows as names are seen
	if err1 != nil || err2 != nil {
		n.reset()
		return errs.New("Net.LoadParam", errs.KindBadModel,
			fmt.Errorf("malformed layer/blob count line %q", scanner.Text()))
	}

	for i := 0; i < layerCount; i++ {
		if !scanner.Scan() {
			n.reset()
			return errs.New("Net.LoadParam", errs.KindBadModel,
				fmt.Errorf("expected %d layer lines, stream ended after %d", layerCount, i))
		}
		if err := n.loadLayerLine(i, scanner.Text()); err != nil {
			n.reset()
			return err
		}
	}
	return nil
}

// reset clears partial graph state after a fatal load failure.
func (n *Net) reset() {
	n.Layers = nil
	n.Blobs = nil
	n.blobIndex = make(map[string]int)
}

func (n *Net) loadLayerLine(index int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		slog.Warn("malformed layer line, skipping", "index", index, "line", line)
		n.Layers = append(n.Layers, &LayerRecord{Layer: nil})
		return nil
	}

	typeName, name := fields[0], fields[1]
	bottomCount, err1 := strconv.Atoi(fields[2])
	topCount, err2 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || len(fields) < 4+bottomCount+topCount {
		slog.Warn("malformed bottom/top counts, skipping layer", "index", index, "name", name)
		n.Layers = append(n.Layers, &LayerRecord{Layer: nil})
		return nil
	}

	rec := &LayerRecord{TypeName: typeName, Name: name}
	for _, bname := range fields[4 : 4+bottomCount] {
		bi := n.blobIdx(bname)
		n.Blobs[bi].Consumers = append(n.Blobs[bi].Consumers, index)
		rec.Bottoms = append(rec.Bottoms, bi)
	}
	for _, tname := range fields[4+bottomCount : 4+bottomCount+topCount] {
		ti := n.blobIdx(tname)
		n.Blobs[ti].Producer = index
		rec.Tops = append(rec.Tops, ti)
	}

	l, idx, ok := n.registry.ByName(typeName)
	if !ok {
		return errs.New("Net.LoadParam", errs.KindUnknownLayerType,
			fmt.Errorf("layer %d (%s): unknown layer type %q", index, name, typeName))
	}
	rec.TypeIdx = idx

	pdTokens := fields[4+bottomCount+topCount:]
	pd, err := paramdict.ReadText(bufio.NewReader(strings.NewReader(strings.Join(pdTokens, " ") + "\n")))
	if err != nil {
		slog.Warn("bad param record, slot left null", "index", index, "name", name, "err", err)
		n.Layers = append(n.Layers, rec)
		return nil
	}
	pd.Options = n.Options
	rec.Param = pd

	if err := l.LoadParam(pd); err != nil {
		slog.Warn("load_param failed, slot left null", "index", index, "name", name, "err", err)
		n.Layers = append(n.Layers, rec)
		return nil
	}

	rec.Layer = l
	n.Layers = append(n.Layers, rec)
	return nil
}

// LoadParamBin parses the binary topology format from r: i32 magic,
// size_t layer_count, size_t blob_count, then per layer i32
// type_index, size_t bottom_count, size_t top_count, and the
// bottom/top blob indices themselves (size_t each) - the binary format
// wires blobs by index rather than by name. Each layer's param record
// follows immediately as a binary-stream ParamDict (paramdict.ReadBinary).
// An unresolvable type_index aborts the whole load, same as LoadParam.
func (n *Net) LoadParamBin(r io.Reader) error {
	layerCount, err := n.loadParamBinHeader("Net.LoadParamBin", r)
	if err != nil {
		n.reset()
		return err
	}

	for i := 0; i < layerCount; i++ {
		if err := n.loadLayerRecordBin(i, r); err != nil {
			n.reset()
			return err
		}
	}
	return nil
}

// LoadParamMem parses the aligned-memory variant of the binary
// topology format from buf: identical byte layout to LoadParamBin, but
// buf's start must be 32-bit aligned so each layer's param tail can be
// read with paramdict.ReadBinaryAligned without copying. Returns the
// number of bytes consumed, so callers can chain it against a
// following LoadModel read over the same aligned buffer.
func (n *Net) LoadParamMem(buf []byte) (int, error) {
	header := bytes.NewReader(buf)
	layerCount, err := n.loadParamBinHeader("Net.LoadParamMem", header)
	if err != nil {
		n.reset()
		return 0, err
	}
	pos := len(buf) - header.Len()

	for i := 0; i < layerCount; i++ {
		consumed, err := n.loadLayerRecordMem(i, buf[pos:])
		if err != nil {
			n.reset()
			return 0, err
		}
		pos += consumed
	}
	return pos, nil
}

func (n *Net) loadParamBinHeader(op string, r io.Reader) (int, error) {
	var magic int32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return 0, errs.New(op, errs.KindBadModel, fmt.Errorf("reading magic: %w", err))
	}
	if magic != MagicNumber {
		return 0, errs.New(op, errs.KindIncompatibleVersion,
			fmt.Errorf("bad magic %d, want %d", magic, MagicNumber))
	}

	layerCount, err := readSizeT(r)
	if err != nil {
		return 0, errs.New(op, errs.KindBadModel, fmt.Errorf("reading layer_count: %w", err))
	}
	blobCount, err := readSizeT(r)
	if err != nil {
		return 0, errs.New(op, errs.KindBadModel, fmt.Errorf("reading blob_count: %w", err))
	}

	n.Blobs = make([]Blob, blobCount)
	return layerCount, nil
}

// readLayerTopology reads one layer's binary topology header (type
// index, bottom/top counts, bottom/top blob indices) from r - the
// prefix shared by the binary-stream and aligned-memory formats.
func (n *Net) readLayerTopology(op string, index int, r io.Reader) (*LayerRecord, error) {
	var typeIdx int32
	if err := binary.Read(r, binary.LittleEndian, &typeIdx); err != nil {
		return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: reading type_index: %w", index, err))
	}
	bottomCount, err := readSizeT(r)
	if err != nil {
		return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: reading bottom_count: %w", index, err))
	}
	topCount, err := readSizeT(r)
	if err != nil {
		return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: reading top_count: %w", index, err))
	}

	rec := &LayerRecord{TypeIdx: uint32(typeIdx)}
	for b := 0; b < bottomCount; b++ {
		bi, err := readSizeT(r)
		if err != nil {
			return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: reading bottom index: %w", index, err))
		}
		if bi < 0 || bi >= len(n.Blobs) {
			return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: bottom index %d out of range", index, bi))
		}
		n.Blobs[bi].Consumers = append(n.Blobs[bi].Consumers, index)
		rec.Bottoms = append(rec.Bottoms, bi)
	}
	for t := 0; t < topCount; t++ {
		ti, err := readSizeT(r)
		if err != nil {
			return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: reading top index: %w", index, err))
		}
		if ti < 0 || ti >= len(n.Blobs) {
			return nil, errs.New(op, errs.KindBadModel, fmt.Errorf("layer %d: top index %d out of range", index, ti))
		}
		n.Blobs[ti].Producer = index
		rec.Tops = append(rec.Tops, ti)
	}
	return rec, nil
}

func (n *Net) loadLayerRecordBin(index int, r io.Reader) error {
	rec, err := n.readLayerTopology("Net.LoadParamBin", index, r)
	if err != nil {
		return err
	}

	l, ok := n.registry.ByIndex(rec.TypeIdx)
	if !ok {
		return errs.New("Net.LoadParamBin", errs.KindUnknownLayerType,
			fmt.Errorf("layer %d: unknown layer type index %d", index, rec.TypeIdx))
	}
	rec.TypeName = l.TypeName()

	pd, err := paramdict.ReadBinary(r)
	if err != nil {
		slog.Warn("bad binary param record, slot left null", "index", index, "err", err)
		n.Layers = append(n.Layers, rec)
		return nil
	}
	pd.Options = n.Options
	rec.Param = pd

	if err := l.LoadParam(pd); err != nil {
		slog.Warn("load_param failed, slot left null", "index", index, "err", err)
		n.Layers = append(n.Layers, rec)
		return nil
	}

	rec.Layer = l
	n.Layers = append(n.Layers, rec)
	return nil
}

func (n *Net) loadLayerRecordMem(index int, buf []byte) (int, error) {
	r := bytes.NewReader(buf)
	rec, err := n.readLayerTopology("Net.LoadParamMem", index, r)
	if err != nil {
		return 0, err
	}

	l, ok := n.registry.ByIndex(rec.TypeIdx)
	if !ok {
		return 0, errs.New("Net.LoadParamMem", errs.KindUnknownLayerType,
			fmt.Errorf("layer %d: unknown layer type index %d", index, rec.TypeIdx))
	}
	rec.TypeName = l.TypeName()

	pos := len(buf) - r.Len()
	pd, consumed, err := paramdict.ReadBinaryAligned(buf[pos:])
	if err != nil {
		slog.Warn("bad binary param record, slot left null", "index", index, "err", err)
		n.Layers = append(n.Layers, rec)
		return pos, nil
	}
	pd.Options = n.Options
	rec.Param = pd

	if err := l.LoadParam(pd); err != nil {
		slog.Warn("load_param failed, slot left null", "index", index, "err", err)
		n.Layers = append(n.Layers, rec)
		return pos + consumed, nil
	}

	rec.Layer = l
	n.Layers = append(n.Layers, rec)
	return pos + consumed, nil
}

// readSizeT reads one little-endian 8-byte size_t field.
func readSizeT(r io.Reader) (int, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return int(v), nil
}

// LoadModel pulls weight tensors for every successfully loaded layer,
// in file order. When gpu is non-nil and Options.GPU is set, every
// layer's GPU-resident weights (layer.GPUWeightsProvider) are recorded
// into a single upload batch and submitted once at the end, instead of
// a per-layer round trip to the device.
func (n *Net) LoadModel(mb *modelbin.ModelBin, gpu backend.GPU) error {
	useGPU := gpu != nil && n.Options.GPU

	for _, rec := range n.Layers {
		if rec.Layer == nil {
			continue
		}
		if err := rec.Layer.LoadModel(mb); err != nil {
			return errs.New("Net.LoadModel", errs.KindBadModel,
				fmt.Errorf("layer %q (%s): %w", rec.Name, rec.TypeName, err))
		}

		if !useGPU {
			continue
		}
		provider, ok := rec.Layer.(layer.GPUWeightsProvider)
		if !ok {
			continue
		}
		for _, w := range provider.GPUWeights() {
			if w == nil {
				continue
			}
			if err := gpu.RecordUpload(w); err != nil {
				return errs.New("Net.LoadModel", errs.KindBackendError,
					fmt.Errorf("layer %q (%s): uploading weights: %w", rec.Name, rec.TypeName, err))
			}
		}
	}

	if useGPU {
		if err := gpu.Submit(); err != nil {
			return errs.New("Net.LoadModel", errs.KindBackendError, fmt.Errorf("submitting weight uploads: %w", err))
		}
	}
	return nil
}

// BlobIndex looks up a blob by name, for callers wiring Extractor.Input.
func (n *Net) BlobIndex(name string) (int, bool) {
	idx, ok := n.blobIndex[name]
	return idx, ok
}

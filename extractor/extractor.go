// Package extractor implements the lazy on-demand executor: it walks
// only the producer closure needed to materialize a requested blob,
// honors per-layer in-place dispatch, and - in lightmode - evicts a
// blob's tensor slot the moment its last consumer (in the current
// extraction) has run.
//
// The resolver is expressed as an explicit work stack rather than
// recursion: arbitrary graphs can recurse deeper than is comfortable
// on a goroutine stack, and an explicit stack makes the "already
// resolved, return" and "push missing producers, retry" steps easy to
// express without re-entrant call frames.
package extractor

import (
	"fmt"
	"log/slog"

	"github.com/emirpasic/gods/v2/stack/linkedliststack"
	"github.com/google/uuid"

	"github.com/nnexec/netcore/backend"
	"github.com/nnexec/netcore/errs"
	"github.com/nnexec/netcore/graph"
	"github.com/nnexec/netcore/layer"
	"github.com/nnexec/netcore/tensor"
)

// gpuLocalSize is the per-axis compute-shader workgroup size the
// command-recording pass divides each top tensor's shape by.
const gpuLocalSize = 16

// Extractor owns one inference's worth of per-blob tensor slots.
type Extractor struct {
	// ID identifies this extraction run in logs; useful when several
	// Extractors over the same Net run concurrently. An Extractor is
	// not itself safe to share across goroutines.
	ID string

	net *graph.Net
	opt layer.Option

	lightMode bool
	gpu       backend.GPU

	slots     []*tensor.Tensor
	resolved  []bool
	remaining []int // remaining consumer count per blob, for lightmode eviction
	uploaded  []bool // per-blob: graph input already recorded for GPU upload
}

// New returns an Extractor over net, ready to accept inputs. lightMode
// toggles the working-set-bounding eviction policy; opt carries the
// per-layer execution settings (thread count, allocators). gpu is
// optional: pass a backend.GPU (e.g. &backend.Null{} or a real driver
// binding) to run execute() through the two-pass shape-propagation and
// command-recording GPU path when net.Options.GPU is set; omit it (or
// pass nil) to stay on the CPU path regardless of net.Options.GPU.
func New(net *graph.Net, opt layer.Option, lightMode bool, gpu ...backend.GPU) *Extractor {
	e := &Extractor{
		ID:        uuid.NewString(),
		net:       net,
		opt:       opt,
		lightMode: lightMode,
		slots:     make([]*tensor.Tensor, len(net.Blobs)),
		resolved:  make([]bool, len(net.Layers)),
		remaining: make([]int, len(net.Blobs)),
		uploaded:  make([]bool, len(net.Blobs)),
	}
	if len(gpu) > 0 {
		e.gpu = gpu[0]
	}
	for i, b := range net.Blobs {
		e.remaining[i] = len(b.Consumers)
	}
	slog.Debug("extractor: created", "id", e.ID, "lightMode", lightMode, "gpu", e.useGPU(), "blobs", len(net.Blobs), "layers", len(net.Layers))
	return e
}

// useGPU reports whether execute() should record GPU commands instead
// of running layers purely on the CPU.
func (e *Extractor) useGPU() bool {
	return e.gpu != nil && e.net.Options.GPU
}

// Input deposits t directly into the named blob's slot. The Extractor
// takes no extra reference: if lightmode later evicts
// this blob, t itself is released (its Dims become 0).
func (e *Extractor) Input(name string, t *tensor.Tensor) error {
	idx, ok := e.net.BlobIndex(name)
	if !ok {
		return errs.New("Extractor.Input", errs.KindNotFound, fmt.Errorf("unknown blob %q", name))
	}
	e.slots[idx] = t
	return nil
}

// Extract materializes the named blob's tensor, resolving only the
// producer sub-graph needed, and returns it by shared reference. In
// GPU mode, this is also where the recorded command buffer for the
// resolved sub-graph is submitted and waited on, and where the result
// is downloaded from its device-resident tensor into a host-readable one.
func (e *Extractor) Extract(name string) (*tensor.Tensor, error) {
	idx, ok := e.net.BlobIndex(name)
	if !ok {
		return nil, errs.New("Extractor.Extract", errs.KindNotFound, fmt.Errorf("unknown blob %q", name))
	}
	if err := e.resolveBlob(idx); err != nil {
		return nil, err
	}
	if e.slots[idx] == nil {
		return nil, errs.New("Extractor.Extract", errs.KindNotFound,
			fmt.Errorf("blob %q has no producer and was never given as input", name))
	}

	result := e.slots[idx]
	if e.useGPU() {
		if err := e.gpu.Submit(); err != nil {
			return nil, errs.New("Extractor.Extract", errs.KindBackendError,
				fmt.Errorf("submitting command buffer: %w", err))
		}
		downloaded, err := e.gpu.Download(result)
		if err != nil {
			return nil, errs.New("Extractor.Extract", errs.KindBackendError,
				fmt.Errorf("downloading %q: %w", name, err))
		}
		result = downloaded
	}

	slog.Debug("extractor: resolved blob", "id", e.ID, "blob", name)
	return result, nil
}

// resolveBlob ensures slots[idx] is populated, running the producing
// layer (and transitively, its own unresolved bottoms) if needed.
func (e *Extractor) resolveBlob(idx int) error {
	if e.slots[idx] != nil {
		return nil
	}
	producer := e.net.Blobs[idx].Producer
	if producer == -1 {
		return nil // graph input never supplied; Extract reports NotFound
	}
	return e.run(producer)
}

// run executes the work stack needed to resolve layerIdx, pushing any
// unresolved producer dependencies ahead of it instead of recursing.
func (e *Extractor) run(layerIdx int) error {
	work := linkedliststack.New[int]()
	work.Push(layerIdx)

	for !work.Empty() {
		l, _ := work.Peek()

		if e.resolved[l] {
			work.Pop()
			continue
		}

		rec := e.net.Layers[l]
		missing := false
		for _, bi := range rec.Bottoms {
			if e.slots[bi] != nil {
				continue
			}
			p := e.net.Blobs[bi].Producer
			if p == -1 {
				return errs.New("Extractor.run", errs.KindNotFound,
					fmt.Errorf("blob %q required by layer %q was never given as input", e.net.Blobs[bi].Name, rec.Name))
			}
			if !e.resolved[p] {
				work.Push(p)
				missing = true
			}
		}
		if missing {
			continue
		}

		work.Pop()
		if err := e.execute(l); err != nil {
			return err
		}
	}
	return nil
}

// execute runs one layer's forward pass (in-place or out-of-place),
// populates its top blobs, and applies lightmode eviction to its
// bottom blobs whose last consumer just ran.
func (e *Extractor) execute(l int) error {
	rec := e.net.Layers[l]
	if rec.Layer == nil {
		return errs.New("Extractor.execute", errs.KindUnknownLayerType,
			fmt.Errorf("layer %q (%s) failed to load", rec.Name, rec.TypeName))
	}

	bottoms := make([]*tensor.Tensor, len(rec.Bottoms))
	for i, bi := range rec.Bottoms {
		bt := e.slots[bi]
		if e.useGPU() && e.net.Blobs[bi].Producer == -1 && !e.uploaded[bi] {
			// A graph input's tensor lives on the host; the first layer
			// to consume it needs a staging upload recorded ahead of its
			// dispatch.
			if err := e.gpu.RecordUpload(bt); err != nil {
				return errs.New("Extractor.execute", errs.KindBackendError,
					fmt.Errorf("layer %q: uploading %q: %w", rec.Name, e.net.Blobs[bi].Name, err))
			}
			e.uploaded[bi] = true
		}
		bottoms[i] = bt
	}

	useInplace := e.lightMode && rec.Layer.SupportInplace() && rec.Layer.OneBlobOnly() &&
		len(rec.Bottoms) == 1 && len(rec.Tops) == 1

	var tops []*tensor.Tensor

	if useInplace {
		bi := rec.Bottoms[0]
		bt := bottoms[0]
		// A bottom is safe to mutate in place only if this layer is its
		// last remaining consumer in the graph (otherwise a sibling
		// consumer still needs the untouched value - the diamond-DAG
		// case) and no header outside this Extractor aliases it.
		stillNeededElsewhere := e.remaining[bi] > 1 || bt.RefCount() > 1

		var topTensor *tensor.Tensor
		if stillNeededElsewhere {
			// Mutate a private clone and leave the bottom slot's own
			// header untouched, so its eventual eviction only drops this
			// slot's share of the original storage. On GPU, the clone
			// itself is a device-side command rather than a host copy.
			if e.useGPU() {
				cloned, err := e.gpu.RecordClone(bt)
				if err != nil {
					return errs.New("Extractor.execute", errs.KindBackendError,
						fmt.Errorf("layer %q: cloning for in-place dispatch: %w", rec.Name, err))
				}
				topTensor = cloned
			} else {
				topTensor = bt.Clone()
			}
			bt = topTensor
		} else {
			// Not shared: the top gets its own header aliasing the same
			// storage, so releasing the bottom slot later zeroes only
			// that header and leaves the top's header intact.
			topTensor = bt.Ref()
		}
		if err := rec.Layer.ForwardInplace([]*tensor.Tensor{bt}, e.opt); err != nil {
			return errs.New("Extractor.execute", errs.KindShapeError,
				fmt.Errorf("layer %q: %w", rec.Name, err))
		}
		tops = []*tensor.Tensor{topTensor}

		if e.useGPU() {
			consts, wg := gpuDispatchConsts(bottoms[0], topTensor)
			if err := e.gpu.RecordDispatch(rec.TypeName, consts, wg); err != nil {
				return errs.New("Extractor.execute", errs.KindBackendError,
					fmt.Errorf("layer %q: dispatching: %w", rec.Name, err))
			}
			if err := e.gpu.RecordBarrier(topTensor); err != nil {
				return errs.New("Extractor.execute", errs.KindBackendError,
					fmt.Errorf("layer %q: recording barrier: %w", rec.Name, err))
			}
		}
	} else {
		var err error
		tops, err = rec.Layer.Forward(bottoms, e.opt)
		if err != nil {
			return errs.New("Extractor.execute", errs.KindShapeError,
				fmt.Errorf("layer %q: %w", rec.Name, err))
		}

		if e.useGPU() {
			gpuTops, err := e.shapePropagate(rec, bottoms, tops)
			if err != nil {
				return errs.New("Extractor.execute", errs.KindBackendError,
					fmt.Errorf("layer %q: %w", rec.Name, err))
			}
			tops = gpuTops
		}
	}

	for i, ti := range rec.Tops {
		e.slots[ti] = tops[i]
	}
	e.resolved[l] = true

	if e.lightMode {
		for _, bi := range rec.Bottoms {
			e.remaining[bi]--
			if e.remaining[bi] <= 0 && e.slots[bi] != nil && !aliasesAnyTop(e.slots[bi], rec.Tops, e.slots) {
				e.slots[bi].Release()
				e.slots[bi] = nil
			}
		}
	}
	return nil
}

func aliasesAnyTop(t *tensor.Tensor, tops []int, slots []*tensor.Tensor) bool {
	for _, ti := range tops {
		if slots[ti] == t {
			return true
		}
	}
	return false
}

// shapePropagate is the out-of-place half of the GPU command-recording
// pass: it allocates a device-resident replacement for each
// already-computed top tensor (the shape-propagation pass proper - a
// real backend would skip the host-side Forward call entirely and
// compute shapes from bottoms alone, but the CPU path above is reused
// here for result fidelity against the Null backend), copies the data
// across, and records the dispatch and the producer->consumer barrier
// for each resulting device tensor.
func (e *Extractor) shapePropagate(rec *graph.LayerRecord, bottoms, tops []*tensor.Tensor) ([]*tensor.Tensor, error) {
	gpuTops := make([]*tensor.Tensor, len(tops))
	for i, top := range tops {
		gt, err := e.gpu.AllocateTensor(top.Shape(), top.ElemSize)
		if err != nil {
			return nil, fmt.Errorf("allocating top %d: %w", i, err)
		}
		copy(gt.Bytes(), top.Bytes())
		gpuTops[i] = gt
	}

	var bottom tensor.Tensor
	if len(bottoms) > 0 {
		bottom = *bottoms[0]
	}
	consts, wg := gpuDispatchConsts(&bottom, gpuTops[0])
	if err := e.gpu.RecordDispatch(rec.TypeName, consts, wg); err != nil {
		return nil, fmt.Errorf("dispatching: %w", err)
	}
	for _, gt := range gpuTops {
		if err := e.gpu.RecordBarrier(gt); err != nil {
			return nil, fmt.Errorf("recording barrier: %w", err)
		}
	}
	return gpuTops, nil
}

// gpuDispatchConsts builds the push constants and workgroup counts the
// command-recording pass feeds a layer's kernel dispatch: only the
// first bottom/top pair is described, matching the fixed-size push
// constant layout a real kernel receives.
func gpuDispatchConsts(bottom, top *tensor.Tensor) (backend.DispatchConstants, backend.WorkgroupCounts) {
	consts := backend.DispatchConstants{
		BottomW: bottom.W, BottomH: bottom.H, BottomC: bottom.C, BottomCStep: bottom.CStep,
		TopW: top.W, TopH: top.H, TopC: top.C, TopCStep: top.CStep,
	}
	wg := backend.WorkgroupCounts{
		X: ceilDiv(top.W, gpuLocalSize),
		Y: ceilDiv(top.H, gpuLocalSize),
		Z: ceilDiv(top.C, gpuLocalSize),
	}
	return consts, wg
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

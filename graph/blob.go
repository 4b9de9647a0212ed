package graph

// Blob is a named edge in the layer graph: it records which layer
// produces it and which layers consume it, but carries no
// tensor data itself - the Extractor owns the per-inference tensor
// slots keyed by blob index.
type Blob struct {
	Name string

	// Producer is the index of the layer that writes this blob, or -1
	// if it is an Extractor.Input slot never produced by a layer.
	Producer int

	// Consumers lists, in load order, the indices of layers that read
	// this blob as a bottom.
	Consumers []int
}

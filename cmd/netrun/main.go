// cmd/netrun - CLI fuer ein einzelnes Inferenz-Durchlauf ueber einen
// geladenen Graphen: .param + .bin einlesen, einen 1-D Eingabetensor
// aus Einsen (Laenge --input-size) in den Blob --input speisen, den
// Blob --output extrahieren und seine Form ausgeben.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nnexec/netcore/backend"
	"github.com/nnexec/netcore/config"
	"github.com/nnexec/netcore/extractor"
	"github.com/nnexec/netcore/graph"
	"github.com/nnexec/netcore/layer"
	"github.com/nnexec/netcore/modelbin"
	"github.com/nnexec/netcore/tensor"
)

func main() {
	if err := newCLI().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cobra.Command {
	var (
		paramPath  string
		modelPath  string
		inputBlob  string
		outputBlob string
		inputSize  int
	)

	root := &cobra.Command{
		Use:           "netrun",
		Short:         "Load a graph and extract one blob from it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(paramPath, modelPath, inputBlob, outputBlob, inputSize)
		},
	}

	root.Flags().StringVar(&paramPath, "param", "", "path to the .param topology file")
	root.Flags().StringVar(&modelPath, "model", "", "path to the .bin weight file")
	root.Flags().StringVar(&inputBlob, "input", "data", "name of the input blob to feed")
	root.Flags().StringVar(&outputBlob, "output", "output", "name of the blob to extract")
	root.Flags().IntVar(&inputSize, "input-size", 1, "element count of the synthetic all-ones input tensor fed to --input")
	root.MarkFlagRequired("param")
	root.MarkFlagRequired("model")

	return root
}

func run(paramPath, modelPath, inputBlob, outputBlob string, inputSize int) error {
	paramFile, err := os.Open(paramPath)
	if err != nil {
		return fmt.Errorf("opening param file: %w", err)
	}
	defer paramFile.Close()

	net := graph.NewNet()
	net.Options.Winograd = config.Winograd(false)
	net.Options.SGEMM = config.SGEMM(false)
	net.Options.Int8 = config.Int8()
	net.Options.GPU = config.GPU()

	if err := net.LoadParam(paramFile); err != nil {
		return fmt.Errorf("loading topology: %w", err)
	}

	mb, err := modelbin.NewFromMMap(modelPath)
	if err != nil {
		return fmt.Errorf("opening weights: %w", err)
	}
	defer mb.Close()

	// The Null GPU backend has no device to drive, but exercises the
	// same command-recording path a real backend would: useful until a
	// driver-backed implementation is wired in here.
	var gpu backend.GPU
	if net.Options.GPU {
		gpu = &backend.Null{}
	}

	if err := net.LoadModel(mb, gpu); err != nil {
		return fmt.Errorf("loading weights: %w", err)
	}

	ex := extractor.New(net, layer.Option{NumThreads: config.ResolvedThreads()}, config.LightMode(), gpu)

	ones := make([]float32, inputSize)
	for i := range ones {
		ones[i] = 1
	}
	in := tensor.CreateFromFloats(ones, tensor.NewHeapAllocator())
	if err := ex.Input(inputBlob, in); err != nil {
		return fmt.Errorf("feeding %q: %w", inputBlob, err)
	}

	slog.Info("netrun: graph loaded", "extractor", ex.ID, "layers", len(net.Layers), "blobs", len(net.Blobs))

	out, err := ex.Extract(outputBlob)
	if err != nil {
		return fmt.Errorf("extracting %q: %w", outputBlob, err)
	}

	fmt.Printf("%s: dims=%d w=%d h=%d c=%d elements=%d\n",
		outputBlob, out.Dims, out.W, out.H, out.C, out.Elements())
	return nil
}

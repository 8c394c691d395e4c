// Package main provides the multilayer CLI: train, inspect and run networks.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/multilayer/internal/conf"
	"github.com/born-ml/multilayer/internal/dataset"
	"github.com/born-ml/multilayer/internal/listener"
	"github.com/born-ml/multilayer/internal/multilayer"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(out, "multilayer %s\n", version)
		return nil
	case "train":
		return train(args[1:], out)
	case "predict":
		return predict(args[1:], out)
	case "summary":
		return summary(args[1:], out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "multilayer - multi-layer network trainer")
	fmt.Fprintf(out, "Version: %s\n\n", version)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  train      Train a network from a YAML config and a CSV file")
	fmt.Fprintln(out, "  predict    Predict classes with a saved model")
	fmt.Fprintln(out, "  summary    Print the layer table of a config")
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func loadCSV(path string, labelIndex, classes int) (*dataset.DataSet, error) {
	//nolint:gosec // G304: data path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return dataset.LoadCSV(f, labelIndex, classes)
}

func train(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		configPath = fs.String("config", "", "network config (YAML)")
		dataPath   = fs.String("data", "", "training data (CSV)")
		labelIndex = fs.Int("label-index", -1, "class column; -1 means last")
		classes    = fs.Int("classes", 0, "number of classes")
		batch      = fs.Int("batch", 32, "minibatch size")
		epochs     = fs.Int("epochs", 10, "passes over the data")
		normalize  = fs.Bool("normalize", false, "scale features to zero mean and unit variance")
		shuffle    = fs.Int64("shuffle", 0, "shuffle seed; 0 keeps file order")
		every      = fs.Int("log-every", 10, "log the score every N iterations")
		saveUpd    = fs.Bool("save-updater", true, "store updater state in the model")
		outPath    = fs.String("out", "model.born", "output model file")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" || *dataPath == "" || *classes <= 0 {
		return fmt.Errorf("train: -config, -data and -classes are required")
	}
	logger := newLogger(*verbose)

	cfg, err := conf.LoadYAML(*configPath)
	if err != nil {
		return err
	}
	ds, err := loadCSV(*dataPath, resolveLabelIndex(*dataPath, *labelIndex), *classes)
	if err != nil {
		return err
	}
	if *normalize {
		ds.NormalizeZeroMeanUnitVariance()
	}
	if *shuffle != 0 {
		ds.Shuffle(*shuffle)
	}

	net, err := multilayer.New(cfg, multilayer.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := net.Init(); err != nil {
		return err
	}
	net.SetListeners(listener.NewScoreIterationListener(*every, logger))
	logger.WithFields(logrus.Fields{
		"model_id": net.ModelID(),
		"examples": ds.NumExamples(),
		"params":   net.NumParams(),
	}).Info("training")

	it := dataset.NewListIterator(ds, *batch)
	for epoch := 0; epoch < *epochs; epoch++ {
		it.Reset()
		if err := net.FitIterator(it); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"epoch": epoch + 1, "score": net.Score()}).Info("epoch done")
	}

	if err := net.SaveFile(*outPath, *saveUpd); err != nil {
		return err
	}
	fmt.Fprintf(out, "saved %s (%d iterations, score %.6f)\n", *outPath, net.IterationCount(), net.Score())
	return nil
}

func predict(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		modelPath  = fs.String("model", "model.born", "model file")
		dataPath   = fs.String("data", "", "input data (CSV)")
		labelIndex = fs.Int("label-index", -2, "class column for accuracy; -1 means last, -2 means none")
		classes    = fs.Int("classes", 0, "number of classes when the data is labeled")
		verbose    = fs.Bool("v", false, "debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return fmt.Errorf("predict: -data is required")
	}

	net, err := multilayer.LoadFile(*modelPath, multilayer.WithLogger(newLogger(*verbose)))
	if err != nil {
		return err
	}
	idx := -1
	if *labelIndex != -2 {
		idx = resolveLabelIndex(*dataPath, *labelIndex)
	}
	ds, err := loadCSV(*dataPath, idx, *classes)
	if err != nil {
		return err
	}

	predicted, err := net.PredictClasses(ds.Features)
	if err != nil {
		return err
	}
	correct := 0
	for i, c := range predicted {
		name := fmt.Sprint(c)
		if len(ds.LabelNames) > 0 {
			if name, err = ds.LabelName(c); err != nil {
				name = fmt.Sprint(c)
			}
		}
		fmt.Fprintln(out, name)
		if ds.Labels != nil && floats.MaxIdx(ds.Labels.RawRowView(i)) == c {
			correct++
		}
	}
	if ds.Labels != nil && len(predicted) > 0 {
		fmt.Fprintf(out, "accuracy: %.4f (%d/%d)\n", float64(correct)/float64(len(predicted)), correct, len(predicted))
	}
	return nil
}

func summary(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "network config (YAML)")
	modelPath := fs.String("model", "", "model file, instead of -config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		net *multilayer.Network
		err error
	)
	switch {
	case *modelPath != "":
		net, err = multilayer.LoadFile(*modelPath)
	case *configPath != "":
		var cfg *conf.NetworkConfig
		if cfg, err = conf.LoadYAML(*configPath); err == nil {
			net, err = multilayer.New(cfg)
		}
	default:
		return fmt.Errorf("summary: -config or -model is required")
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, net.Summary())
	return nil
}

// resolveLabelIndex maps -1 to the last column of the first record of path.
func resolveLabelIndex(path string, idx int) int {
	if idx != -1 {
		return idx
	}
	//nolint:gosec // G304: data path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return idx
	}
	defer func() { _ = f.Close() }()
	r := csv.NewReader(f)
	r.Comment = '#'
	rec, err := r.Read()
	if err != nil || len(rec) == 0 {
		return idx
	}
	return len(rec) - 1
}

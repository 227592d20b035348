// Command farmincome trains the fold ensemble, writes batch predictions and
// answers single inference requests.
//
// Usage:
//
//	farmincome train   [-config cfg.yaml]
//	farmincome predict [-config cfg.yaml]
//	farmincome infer   [-config cfg.yaml] [-request req.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/farmincome/config"
	"github.com/YuminosukeSato/farmincome/dataset"
	"github.com/YuminosukeSato/farmincome/ensemble"
	"github.com/YuminosukeSato/farmincome/inference"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
	"github.com/YuminosukeSato/farmincome/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "train":
		err = runTrain(ctx, args)
	case "predict":
		err = runPredict(ctx, args)
	case "infer":
		err = runInfer(ctx, args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.GetLoggerWithName("cmd").Error("command failed", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: farmincome <train|predict|infer> [-config cfg.yaml] [flags]")
}

// setup parses the common flags and configures logging.
func setup(name string, args []string, extra func(*flag.FlagSet)) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	path := fs.String("config", "", "YAML configuration file (defaults apply when empty)")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return nil, err
		}
	}
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Pretty); err != nil {
		return nil, err
	}
	return cfg, nil
}

func prepare(cfg *config.Config) (*pipeline.Prepared, error) {
	train, err := dataset.ReadCSVFile(cfg.Paths.TrainCSV)
	if err != nil {
		return nil, err
	}
	test, err := dataset.ReadCSVFile(cfg.Paths.TestCSV)
	if err != nil {
		return nil, err
	}
	return pipeline.Prepare(cfg, train, test)
}

func runTrain(ctx context.Context, args []string) error {
	cfg, err := setup("train", args, nil)
	if err != nil {
		return err
	}
	p, err := prepare(cfg)
	if err != nil {
		return err
	}

	trainer := ensemble.NewFoldTrainer(cfg, cfg.Paths.ArtifactDir, p.Schema.Names())
	report, err := trainer.Run(ctx, p.XTrain, p.YTrain, p.Folds)
	if err != nil {
		return err
	}
	manifest, err := ensemble.SaveArtifacts(cfg.Paths.ArtifactDir, cfg, p.Schema, p.Defaults(), report)
	if err != nil {
		return err
	}
	if cfg.Training.Plots {
		if err := ensemble.SavePlots(cfg.Paths.ReportDir, report); err != nil {
			return err
		}
	}

	log.GetLoggerWithName("cmd.train").Info("training complete",
		log.ModelVersionKey, manifest.Version,
		log.PathKey, cfg.Paths.ArtifactDir,
		"oof_mape_real", report.OOFMAPEReal,
		"warnings", len(report.Warnings))
	return nil
}

func runPredict(ctx context.Context, args []string) error {
	cfg, err := setup("predict", args, nil)
	if err != nil {
		return err
	}
	ens, err := ensemble.Load(cfg.Paths.ArtifactDir)
	if err != nil {
		return err
	}
	p, err := prepare(cfg)
	if err != nil {
		return err
	}
	if !p.Schema.Equal(ens.Schema()) {
		return scigoErrors.NewModelError("predict", "feature schema of the test data differs from the trained ensemble", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	preds, err := ens.PredictBatch(p.XTest, p.TestIDs)
	if err != nil {
		return err
	}
	if err := ensemble.WritePredictions(cfg.Paths.PredictionCSV, preds); err != nil {
		return err
	}
	log.GetLoggerWithName("cmd.predict").Info("predictions written",
		log.PathKey, cfg.Paths.PredictionCSV,
		log.PredsKey, len(preds))
	return nil
}

func runInfer(ctx context.Context, args []string) error {
	var requestPath string
	cfg, err := setup("infer", args, func(fs *flag.FlagSet) {
		fs.StringVar(&requestPath, "request", "", "JSON request file (defaults apply to absent fields)")
	})
	if err != nil {
		return err
	}

	req := inference.DefaultRequest()
	if requestPath != "" {
		data, err := os.ReadFile(requestPath)
		if err != nil {
			return scigoErrors.Wrap(err, "failed to read request")
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return scigoErrors.Wrap(err, "failed to parse request")
		}
	}

	svc, err := inference.NewService(cfg.Paths.ArtifactDir, cfg)
	if err != nil {
		return err
	}
	resp, err := svc.Predict(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

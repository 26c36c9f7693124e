package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/util"
)

func predictCommand(g *globals) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "predict [image]",
		Short: "Label a local image, or every image in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, logCloser, err := g.load()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			paths := []string{cfg.Predict.Image}
			switch {
			case dir != "":
				if paths, err = util.ListImageFiles(dir); err != nil {
					return err
				}
				if len(paths) == 0 {
					return errors.Errorf("no images in %s", dir)
				}
			case len(args) == 1:
				paths = []string{args[0]}
			}

			p, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer p.close(log)

			return runPredict(cmd, p.detector, paths, log)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Label every image in this directory")

	return cmd
}

// fileLabeler labels an image on disk.
type fileLabeler interface {
	DetectFile(ctx context.Context, path string) (*detector.Result, error)
}

// runPredict labels each path and prints the result. A configuration error
// stops the run; other failures are logged and counted.
func runPredict(cmd *cobra.Command, det fileLabeler, paths []string, log logrus.FieldLogger) error {
	failed := 0
	for _, path := range paths {
		plog := log.WithField("path", path)

		res, err := det.DetectFile(cmd.Context(), path)
		switch {
		case err == nil:
			printResult(cmd.OutOrStdout(), res.Labels)
			plog.WithField("elapsed", res.Timings.Total).Debug("prediction complete")
		case detector.IsConfigurationError(err):
			return err
		case errors.Is(err, detector.ErrInputMissing):
			plog.WithError(err).Error("image not found")
			failed++
		default:
			plog.WithError(err).Error("prediction failed")
			failed++
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

// printResult writes the human readable summary of one prediction.
func printResult(w io.Writer, labels []string) {
	fmt.Fprintf(w, "------ Prediction Result ------\nFound %d objects: %s\n", len(labels), strings.Join(labels, ", "))
}

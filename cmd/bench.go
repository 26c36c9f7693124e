package cmd

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/util"
)

func benchCommand(g *globals) *cobra.Command {
	var (
		dir         string
		output      string
		iterations  int
		warmup      int
		concurrency []int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure detection throughput over a directory of images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, logCloser, err := g.load()
			if err != nil {
				return err
			}
			defer logCloser.Close()
			// Cached results would turn every repeat into a hash lookup.
			cfg.Cache.Enabled = false

			paths, err := util.ListImageFiles(dir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.Errorf("no images in %s", dir)
			}

			scenarios, err := benchmark.ConcurrencySweep(iterations, warmup, concurrency...)
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			defer p.close(log)

			suite := benchmark.NewSuite(p.detector, output, log)
			if err := suite.LoadImages(paths); err != nil {
				return err
			}
			for _, s := range scenarios {
				suite.AddScenario(s)
			}

			if err := suite.RunAllScenarios(cmd.Context()); err != nil {
				return err
			}

			report, summary, err := suite.SaveResults()
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"report":  report,
				"summary": summary,
			}).Info("benchmark results saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory of benchmark images")
	cmd.Flags().StringVar(&output, "output", "benchmark_results", "Directory for the JSON report and CSV summary")
	cmd.Flags().IntVar(&iterations, "iterations", 100, "Measured runs per scenario")
	cmd.Flags().IntVar(&warmup, "warmup", 10, "Unmeasured runs before each scenario")
	cmd.Flags().IntSliceVar(&concurrency, "concurrency", []int{1}, "Worker counts to sweep, e.g. 1,2,4")

	return cmd
}

// Package cmd - Command line interface for the detector.
package cmd

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/logger"
)

// globals holds the persistent flag values shared by every subcommand.
type globals struct {
	v          *viper.Viper
	configPath string
	debug      bool
}

// RootCommand creates and returns the root command.
func RootCommand() *cobra.Command {
	g := &globals{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "detect",
		Short:         "Image object detection labeler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("model", "", "Path to the ONNX model")
	rootCmd.PersistentFlags().String("classes", "", "Class table file, or \"coco\"")
	rootCmd.PersistentFlags().String("provider", "", "Execution provider: cpu, cuda, coreml or openvino")

	bindFlag(g.v, rootCmd, "model.path", "model")
	bindFlag(g.v, rootCmd, "model.classes", "classes")
	bindFlag(g.v, rootCmd, "model.provider", "provider")

	rootCmd.AddCommand(
		serveCommand(g),
		predictCommand(g),
		benchCommand(g),
	)

	return rootCmd
}

// bindFlag binds a persistent flag to a config key. Binding only fails for a
// nil flag, which would be a programming error.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// load reads the configuration and builds the logger for a command run. The
// caller closes the returned io.Closer when the command is done logging.
func (g *globals) load() (*config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.LoadViper(g.v, g.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if g.debug {
		cfg.Log.Level = logrus.DebugLevel.String()
	}

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closer, nil
}

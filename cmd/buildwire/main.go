package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	buildwire "github.com/buildwire/buildwire-go"
	"github.com/buildwire/buildwire-go/internal/logx"
)

type rootOptions struct {
	configPath string
	cfg        buildwire.Config
}

func (r *rootOptions) prepare() error {
	cfg, err := buildwire.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	r.cfg = cfg
	logx.SetLevel(cfg.LogLevel)

	if cfg.MetricsPort > 0 {
		reg := prometheus.NewRegistry()
		buildwire.RegisterMetrics(reg)
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			_ = http.ListenAndServe(fmt.Sprintf(":%d", cfg.MetricsPort), nil)
		}()
	}
	return nil
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "buildwire",
		Short:        "Drive a build/transform worker over its stdio protocol",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "buildwire.yml", "path to the config file")
	rootCmd.AddCommand(newBuildCmd(opts), newTransformCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTTY() bool {
	info, err := os.Stderr.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func printWarnings(warnings []buildwire.Message) {
	for _, w := range warnings {
		if w.Location != nil {
			fmt.Fprintf(os.Stderr, "%s:%d:%d: warning: %s\n", w.Location.File, w.Location.Line, w.Location.Column, w.Text)
		} else {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Text)
		}
	}
}

func newBuildCmd(opts *rootOptions) *cobra.Command {
	var (
		bundle    bool
		minify    bool
		sourcemap bool
		write     bool
		outfile   string
		target    string
		external  []string
	)

	cmd := &cobra.Command{
		Use:   "build [entry points]",
		Short: "Run one build through the worker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.prepare(); err != nil {
				return err
			}
			worker, err := buildwire.StartWorker(opts.cfg.WorkerPath, opts.cfg.WorkerArgs...)
			if err != nil {
				return err
			}
			defer worker.Close()

			done := make(chan error, 1)
			worker.Service.Build(buildwire.BuildOptions{
				EntryPoints: args,
				Outfile:     outfile,
				Bundle:      bundle,
				Write:       write,
				Minify:      minify,
				Sourcemap:   sourcemap,
				Target:      target,
				External:    external,
			}, isTTY(), func(result *buildwire.BuildResult, err error) {
				if err != nil {
					done <- err
					return
				}
				printWarnings(result.Warnings)
				if !write {
					for _, f := range result.OutputFiles {
						os.Stdout.Write(f.Contents)
					}
				}
				done <- nil
			})
			return <-done
		},
	}

	cmd.Flags().BoolVar(&bundle, "bundle", false, "bundle dependencies into the output")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify the output")
	cmd.Flags().BoolVar(&sourcemap, "sourcemap", false, "emit a source map")
	cmd.Flags().BoolVar(&write, "write", false, "let the worker write output files to disk")
	cmd.Flags().StringVar(&outfile, "outfile", "", "output file path")
	cmd.Flags().StringVar(&target, "target", "", "target environment")
	cmd.Flags().StringSliceVar(&external, "external", nil, "mark a module as external")
	return cmd
}

func newTransformCmd(opts *rootOptions) *cobra.Command {
	var (
		loader    string
		target    string
		minify    bool
		sourcemap bool
	)

	cmd := &cobra.Command{
		Use:   "transform [file]",
		Short: "Transform one file (or stdin) through the worker",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.prepare(); err != nil {
				return err
			}

			var input []byte
			var err error
			if len(args) == 1 {
				input, err = os.ReadFile(args[0])
			} else {
				input, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			worker, err := buildwire.StartWorker(opts.cfg.WorkerPath, opts.cfg.WorkerArgs...)
			if err != nil {
				return err
			}
			defer worker.Close()

			done := make(chan error, 1)
			worker.Service.Transform(string(input), buildwire.TransformOptions{
				Loader:    loader,
				Target:    target,
				Minify:    minify,
				Sourcemap: sourcemap,
			}, isTTY(), func(result *buildwire.TransformResult, err error) {
				if err != nil {
					done <- err
					return
				}
				printWarnings(result.Warnings)
				os.Stdout.WriteString(result.JS)
				if result.JSSourceMap != "" {
					fmt.Fprintln(os.Stderr, result.JSSourceMap)
				}
				done <- nil
			})
			return <-done
		},
	}

	cmd.Flags().StringVar(&loader, "loader", "", "input loader (js, ts, css, ...)")
	cmd.Flags().StringVar(&target, "target", "", "target environment")
	cmd.Flags().BoolVar(&minify, "minify", false, "minify the output")
	cmd.Flags().BoolVar(&sourcemap, "sourcemap", false, "emit a source map")
	return cmd
}

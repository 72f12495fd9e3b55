package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"synthfilter/internal/bridge"
	"synthfilter/internal/config"
	"synthfilter/internal/delivery"
	"synthfilter/internal/engine"
	"synthfilter/internal/logging"
	"synthfilter/internal/remote"
	"synthfilter/internal/services"
	"synthfilter/internal/timeline"
)

type runOptions struct {
	frames       int
	sourceFormat string
	width        int
	height       int
	avg          int64
	sourcePath   string
	output       string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured script against a synthetic source",
		Long: "Run loads the engine, commits the configured script against a generated\n" +
			"test source and delivers the output frames. With remote_control enabled the\n" +
			"session can be inspected and reloaded from another terminal.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "cli", "logging", "", err)
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(runCtx, cfg, logger, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 100, "Output frames to deliver (0 runs until interrupted)")
	cmd.Flags().StringVarP(&opts.sourceFormat, "format", "f", "NV12", "Source format name")
	cmd.Flags().IntVar(&opts.width, "width", 720, "Source width")
	cmd.Flags().IntVar(&opts.height, "height", 480, "Source height")
	cmd.Flags().Int64Var(&opts.avg, "avg-time-per-frame", timeline.DefaultAvgTimePerFrame, "Source frame duration in 100ns units")
	cmd.Flags().StringVar(&opts.sourcePath, "source-path", "", "Source file reported by status (informational)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write raw output planes to this file")
	return cmd
}

func runSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runOptions, out io.Writer) error {
	mt, err := sourceMediaType(cfg, opts.sourceFormat, opts.width, opts.height, opts.avg)
	if err != nil {
		return err
	}

	handle, err := bridge.NewHandle(bridge.Options{
		Module:        cfg.Engine,
		ScriptPath:    cfg.ScriptPath,
		OutputThreads: cfg.OutputThreads,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			logger.Warn("engine shutdown", logging.Error(closeErr))
		}
	}()

	sink, err := newFrameSink(opts.output)
	if err != nil {
		return err
	}
	defer sink.Close()

	supplier := delivery.NewSupplier(cfg.ExtraSourceBuffer)
	session, err := delivery.NewSession(delivery.SessionOptions{
		Handle:   handle,
		Supplier: supplier,
		Sink:     sink,
		Count:    opts.frames,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Open(ctx, mt); err != nil {
		if errors.Is(err, bridge.ErrDisconnected) {
			fmt.Fprintln(out, "Script disconnected the filter; the stream would pass through unfiltered")
			return nil
		}
		return err
	}

	outputName, err := negotiateOutputFormat(cfg, handle.ScriptPixelType())
	if err != nil {
		return err
	}
	outputType, err := handle.GenerateMediaType(outputName, mt)
	if err != nil {
		return services.Wrap(services.ErrValidation, "cli", "output format", outputName, err)
	}
	fmt.Fprintf(out, "Engine: %s\n", handle.Version())
	fmt.Fprintf(out, "Source: %s\n", mt)
	fmt.Fprintf(out, "Output: %s\n", outputType)
	if text, ok := handle.ErrorString(); ok {
		fmt.Fprintf(out, "Script error: %s\n", text)
	}

	if cfg.RemoteControl {
		srv, err := startRemote(ctx, cfg.RemoteSocket, &remote.SessionController{
			Handle:     handle,
			Session:    session,
			SourcePath: opts.sourcePath,
		}, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Fprintf(out, "Remote control: %s\n", srv.Path())
	}

	upstreamCtx, cancelUpstream := context.WithCancel(ctx)
	defer cancelUpstream()
	go pushSyntheticSource(upstreamCtx, supplier, handle.SourceInfo(), mt.Header.AvgTimePerFrame, logger)

	waitErr := session.Wait()
	cancelUpstream()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return services.Wrap(services.ErrEngine, "cli", "deliver", "", waitErr)
	}
	fmt.Fprintf(out, "Delivered %d frames\n", sink.Count())
	return nil
}

func startRemote(ctx context.Context, socket string, ctrl remote.Controller, logger *slog.Logger) (*remote.Server, error) {
	if err := os.MkdirAll(filepath.Dir(socket), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	srv, err := remote.NewServer(ctx, socket, ctrl, logger)
	if err != nil {
		return nil, err
	}
	srv.Serve()
	return srv, nil
}

// pushSyntheticSource feeds a moving luma ramp until ctx ends or the
// supplier closes.
func pushSyntheticSource(ctx context.Context, supplier *delivery.Supplier, info engine.VideoInfo, avg int64, logger *slog.Logger) {
	for n := 0; ; n++ {
		frame, err := engine.NewVideoFrame(info)
		if err != nil {
			logger.Error("allocate source frame", logging.Error(err))
			return
		}
		frame.Fill(0, uint16(n*4))
		for idx := 1; idx < len(frame.Planes); idx++ {
			frame.Fill(idx, 0x80)
		}
		if err := supplier.Push(ctx, frame, int64(n)*avg); err != nil {
			return
		}
	}
}

// frameSink counts delivered frames and optionally writes their planes.
type frameSink struct {
	count  atomic.Int64
	file   *os.File
	writer *bufio.Writer
}

func newFrameSink(path string) (*frameSink, error) {
	sink := &frameSink{}
	if path == "" {
		return sink, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	sink.file = file
	sink.writer = bufio.NewWriter(file)
	return sink, nil
}

func (s *frameSink) Deliver(_ context.Context, frame delivery.OutputFrame) error {
	if s.writer != nil {
		for _, plane := range frame.Frame.Planes {
			if _, err := s.writer.Write(plane); err != nil {
				return err
			}
		}
	}
	s.count.Add(1)
	return nil
}

func (s *frameSink) Count() int64 { return s.count.Load() }

func (s *frameSink) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	return errors.Join(flushErr, s.file.Close())
}

var _ delivery.Sink = (*frameSink)(nil)

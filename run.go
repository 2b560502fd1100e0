package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/markis/omnom/internal/args"
	"github.com/markis/omnom/internal/config"
	"github.com/markis/omnom/internal/logging"
	"github.com/markis/omnom/internal/metrics"
	"github.com/markis/omnom/internal/nom"
	"github.com/markis/omnom/internal/producer"
	"github.com/markis/omnom/internal/render"
	"github.com/markis/omnom/internal/stream"
)

// run parses argv, pushes the selected source through the command's grammar
// and writes the results and a summary to out.
func run(ctx context.Context, argv []string, out io.Writer) error {
	a, err := args.ParseArgs(argv)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, a.ConfigPath)
	if err != nil {
		return err
	}
	a.Resolve(cfg)

	logger, err := logging.NewWith(os.Stderr, a.LogLevel, a.LogFormat)
	if err != nil {
		return err
	}
	log := logger.WithFields(map[string]any{"command": a.Command, "source": a.Source})

	m := metrics.New()
	opts := []producer.Option{
		producer.WithLogger(log),
		producer.WithMetrics(m),
		producer.WithMaxCarry(cfg.MaxCarry),
		producer.WithRetryPolicy(cfg.RetryPolicy()),
	}

	src, err := producer.Open(ctx, a.Source, a.ChunkSize)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close source: %v", err)
		}
	}()

	r := render.NewTerminalRenderer(out, a.UsePlainText)

	var summary producer.Summary
	switch a.Command {
	case args.CommandTag:
		p := nom.Then(nom.Tag([]byte(a.Literal)), nom.Rest())
		summary, err = producer.Push(ctx, src, producer.Parse(p), opts...)
	case args.CommandEvents:
		summary, err = runStream(ctx, r, log, opts, func(p *stream.Parser) {
			p.Process(src)
		})
	case args.CommandChain:
		specs, specErr := stream.ParseFieldSpecs(a.Fields)
		if specErr != nil {
			return specErr
		}
		summary, err = runStream(ctx, r, log, opts, func(p *stream.Parser) {
			p.ProcessRecords(src, specs)
		})
	default:
		return fmt.Errorf("unknown command: %s", a.Command)
	}

	log.Debug("push metrics: %s", m)
	if err != nil {
		return err
	}
	return r.RenderSummary(a.Command, summary)
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadConfig(ctx)
}

// runStream starts process in the background and renders the chunks it
// sends until the channel closes.
func runStream(ctx context.Context, r *render.TerminalRenderer, log logging.Logger, opts []producer.Option, process func(*stream.Parser)) (producer.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := stream.NewParser(ctx, log, opts...)
	go process(p)

	if err := r.Render(p.Chunks()); err != nil {
		cancel()
		for range p.Chunks() {
		}
		return p.Summary(), err
	}
	return p.Summary(), p.Err()
}

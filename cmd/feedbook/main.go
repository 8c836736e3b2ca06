package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"feedbook/api/health"
	"feedbook/infra/config"
	"feedbook/infra/kafka"
	"feedbook/infra/logging"
	entrywal "feedbook/infra/wal/entry"
	exitwal "feedbook/infra/wal/exit"
	"feedbook/jobs/broadcaster"
	"feedbook/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 when every line was clean, 1 when
// any error was counted or the process could not start.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("feedbook", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: feedbook [flags] <target-size> < feed")
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "feedbook: %v\n", err)
		fs.Usage()
		return 1
	}

	log := logging.New(cfg.Log.Level, stderr)
	log.Debug().Uint32("target", cfg.Target).Msg("config loaded")

	code, err := serve(ctx, cfg, stdin, stdout, log)
	if err != nil {
		log.Error().Err(err).Msg("feed aborted")
		return 1
	}
	return code
}

func serve(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer, log zerolog.Logger) (int, error) {
	opts := []service.Option{
		service.WithChunkSize(cfg.Arena.ChunkSize),
		service.WithLineFlush(cfg.Output.LineBuffered),
	}

	// ---------------- Entry WAL ----------------

	if cfg.Journal.Dir != "" {
		j, err := entrywal.Open(entrywal.Config{
			Dir:         cfg.Journal.Dir,
			SegmentSize: cfg.Journal.SegmentSize,
		})
		if err != nil {
			return 1, errors.Wrap(err, "journal init")
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Error().Err(err).Msg("journal close")
			}
		}()
		opts = append(opts, service.WithJournal(j))
	}

	// ---------------- Quote publication ----------------

	switch cfg.Kafka.Mode {
	case config.KafkaOutbox:
		outbox, err := exitwal.Open(cfg.Outbox.Dir)
		if err != nil {
			return 1, errors.Wrap(err, "outbox init")
		}
		defer outbox.Close()

		bc, err := broadcaster.New(outbox, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Outbox.Interval, log)
		if err != nil {
			return 1, err
		}
		bcCtx, cancel := context.WithCancel(context.Background())
		bc.Start(bcCtx)
		// runs before outbox.Close
		defer func() {
			cancel()
			bc.Wait()
			_ = bc.Close()
		}()
		opts = append(opts, service.WithOutbox(outbox))

	case config.KafkaDirect:
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer p.Close()
		opts = append(opts, service.WithPublisher(p))
	}

	svc := service.NewFeedService(cfg.Target, stdout, log, opts...)

	// ---------------- Health ----------------

	if cfg.Admin.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Admin.GRPCAddr)
		if err != nil {
			return 1, errors.Wrap(err, "admin listen")
		}
		hs := health.New(log)
		go func() {
			if err := hs.Serve(lis); err != nil {
				log.Error().Err(err).Msg("health server exited")
			}
		}()
		defer hs.Stop()
		hs.SetServing(true)
		defer hs.SetServing(false)
	}

	// ---------------- Feed ----------------

	var err error
	if cfg.Replay.Dir != "" {
		_, err = service.ReplayFromWAL(ctx, cfg.Replay.Dir, svc)
	} else {
		err = svc.Run(ctx, stdin)
	}
	lines, quotes := svc.Stats()
	log.Debug().
		Uint64("lines", lines).
		Uint64("quotes", quotes).
		Uint64("last_seq", svc.Sequencer().Current()).
		Msg("feed stopped")

	if errors.Is(err, context.Canceled) {
		log.Info().Msg("interrupted, stopping")
		err = nil
	}
	if err != nil {
		return 1, err
	}

	if errs := svc.Errors(); !errs.Empty() {
		if _, err := errs.WriteTo(stdout); err != nil {
			return 1, errors.Wrap(err, "write error report")
		}
		return 1, nil
	}
	return 0, nil
}

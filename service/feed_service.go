package service

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"feedbook/domain/feed"
	"feedbook/domain/orderbook"
	"feedbook/infra/logging"
	"feedbook/infra/memory"
	"feedbook/infra/sequence"
	entrywal "feedbook/infra/wal/entry"
)

// MaxLineSize is the longest feed line accepted. Longer lines are
// discarded whole and counted as corrupted.
const MaxLineSize = 1 << 20

// Publisher sends an encoded quote somewhere outside the process.
type Publisher interface {
	Send(ctx context.Context, seq uint64, payload []byte) error
}

// Outbox durably stores an encoded quote for later publication, keyed by
// the sequence of the line that produced it.
type Outbox interface {
	PutNew(seq uint64, payload []byte) error
	LastSeq() (uint64, error)
}

type FeedService struct {
	handler   *feed.Handler
	target    uint32
	seq       *sequence.Sequencer
	journal   *entrywal.WAL
	outbox    Outbox
	pub       Publisher
	out       *bufio.Writer
	flush     bool
	chunkSize int
	log       zerolog.Logger

	// set for the line being processed; quotes carry it
	ctx     context.Context
	lineSeq uint64

	lines  uint64
	quotes uint64
	outErr error
}

type Option func(*FeedService)

// WithJournal records every line before it is applied.
func WithJournal(w *entrywal.WAL) Option {
	return func(s *FeedService) { s.journal = w }
}

func WithOutbox(o Outbox) Option {
	return func(s *FeedService) { s.outbox = o }
}

func WithPublisher(p Publisher) Option {
	return func(s *FeedService) { s.pub = p }
}

// WithLineFlush flushes the output after every quote.
func WithLineFlush(on bool) Option {
	return func(s *FeedService) { s.flush = on }
}

// WithChunkSize sets how many orders the arena grows by at a time.
func WithChunkSize(n int) Option {
	return func(s *FeedService) { s.chunkSize = n }
}

func NewFeedService(target uint32, out io.Writer, log zerolog.Logger, opts ...Option) *FeedService {
	s := &FeedService{
		target: target,
		out:    bufio.NewWriterSize(out, 64<<10),
		log:    logging.Component(log, "service"),
		ctx:    context.Background(),
		seq:    sequence.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal != nil {
		s.seq.Resume(s.journal.LastSeq())
	}

	book := orderbook.NewBook(target,
		orderbook.WithSink(s.onQuote),
		orderbook.WithArena(memory.NewArena[orderbook.Order](s.chunkSize)),
	)
	s.handler = feed.NewHandler(book, log)
	return s
}

func (s *FeedService) Handler() *feed.Handler { return s.handler }

func (s *FeedService) Errors() *feed.Summary { return s.handler.Errors() }

func (s *FeedService) Sequencer() *sequence.Sequencer { return s.seq }

// Stats returns the number of lines consumed and quotes emitted.
func (s *FeedService) Stats() (lines, quotes uint64) { return s.lines, s.quotes }

// Run consumes r line by line until EOF or ctx is done. Per-line errors
// are counted, never returned; only I/O and journal failures stop it.
func (s *FeedService) Run(ctx context.Context, r io.Reader) error {
	if err := s.resume(); err != nil {
		return err
	}
	br := bufio.NewReaderSize(r, 64<<10)

	start := time.Now()
	for {
		line, oversized, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.finish(errors.Wrap(err, "read feed"))
		}
		if err := ctx.Err(); err != nil {
			return s.finish(err)
		}
		if oversized {
			err = s.rejectOversized(s.seq.Next())
		} else {
			err = s.ProcessLine(ctx, line)
		}
		if err != nil {
			return s.finish(err)
		}
	}

	s.log.Info().
		Uint64("lines", s.lines).
		Uint64("quotes", s.quotes).
		Uint64("errors", s.Errors().Total()).
		Dur("elapsed", time.Since(start)).
		Msg("feed finished")
	return s.finish(nil)
}

// readLine returns the next line without its newline. A line longer than
// MaxLineSize is consumed to its end and reported as oversized instead.
// The last line does not need a trailing newline.
func readLine(r *bufio.Reader) (string, bool, error) {
	var (
		buf       []byte
		read      int
		oversized bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		read += len(chunk)
		if !oversized {
			if len(buf)+len(chunk) > MaxLineSize+1 {
				oversized, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read > 0:
		case err != nil:
			return "", false, err
		}

		if oversized {
			return "", true, nil
		}
		line := strings.TrimSuffix(string(buf), "\n")
		if len(line) > MaxLineSize {
			return "", true, nil
		}
		return line, false, nil
	}
}

// resume moves the sequencer past every quote already in the outbox, so
// a restart never reuses a key that is still waiting to be published.
func (s *FeedService) resume() error {
	if s.outbox == nil {
		return nil
	}
	last, err := s.outbox.LastSeq()
	if err != nil {
		return errors.Wrap(err, "outbox last seq")
	}
	s.seq.Resume(last)
	return nil
}

// ProcessLine assigns the next sequence number to line and applies it.
func (s *FeedService) ProcessLine(ctx context.Context, line string) error {
	return s.apply(ctx, s.seq.Next(), line)
}

func (s *FeedService) apply(ctx context.Context, seq uint64, line string) error {
	if s.journal != nil {
		if err := s.journal.Append(entrywal.NewLine(seq, line)); err != nil {
			return errors.Wrapf(err, "journal seq %d", seq)
		}
	}

	s.ctx, s.lineSeq = ctx, seq
	s.lines++
	_ = s.handler.Process(line)

	return s.outErr
}

// rejectOversized journals a marker in place of the line so a replay
// counts it the same way.
func (s *FeedService) rejectOversized(seq uint64) error {
	if s.journal != nil {
		if err := s.journal.Append(entrywal.NewOversized(seq)); err != nil {
			return errors.Wrapf(err, "journal seq %d", seq)
		}
	}
	s.lines++
	s.log.Warn().Uint64("seq", seq).Int("limit", MaxLineSize).Msg("line too long, discarded")
	_ = s.handler.Reject("line exceeds maximum length")
	return nil
}

func (s *FeedService) onQuote(q orderbook.Quote) {
	s.quotes++
	if _, err := s.out.WriteString(q.String() + "\n"); err != nil && s.outErr == nil {
		s.outErr = errors.Wrap(err, "write quote")
	}
	if s.flush {
		if err := s.out.Flush(); err != nil && s.outErr == nil {
			s.outErr = errors.Wrap(err, "flush quotes")
		}
	}

	if s.outbox == nil && s.pub == nil {
		return
	}
	payload, err := EncodeQuote(s.lineSeq, s.target, q)
	if err != nil {
		s.log.Error().Err(err).Uint64("seq", s.lineSeq).Msg("encode quote")
		return
	}
	if s.outbox != nil {
		if err := s.outbox.PutNew(s.lineSeq, payload); err != nil {
			s.log.Error().Err(err).Uint64("seq", s.lineSeq).Msg("outbox write failed")
		}
	}
	if s.pub != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		if err := s.pub.Send(ctx, s.lineSeq, payload); err != nil {
			s.log.Warn().Err(err).Uint64("seq", s.lineSeq).Msg("publish failed")
		}
	}
}

// Flush pushes buffered quote lines and journal records down.
func (s *FeedService) Flush() error {
	err := s.out.Flush()
	if s.journal != nil {
		if jerr := s.journal.Flush(); err == nil {
			err = jerr
		}
	}
	return err
}

func (s *FeedService) finish(err error) error {
	if ferr := s.Flush(); err == nil && ferr != nil {
		err = errors.Wrap(ferr, "flush")
	}
	return err
}

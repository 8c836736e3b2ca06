package feed

import (
	"fmt"

	"github.com/rs/zerolog"

	"feedbook/domain/orderbook"
	"feedbook/infra/logging"
)

// Handler is the per-message boundary: whatever happens while handling
// one line is classified and counted there, and the next line is
// processed normally.
type Handler struct {
	book *orderbook.Book
	errs Summary
	log  zerolog.Logger
}

func NewHandler(book *orderbook.Book, log zerolog.Logger) *Handler {
	return &Handler{
		book: book,
		log:  logging.Component(log, "feed"),
	}
}

func (h *Handler) Book() *orderbook.Book { return h.book }

func (h *Handler) Errors() *Summary { return &h.errs }

// Process parses and applies one line. The returned error has already
// been recorded; callers only need it for their own logging.
func (h *Handler) Process(line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindUnexpected, Reason: fmt.Sprint(r)}
			h.log.Error().Str("line", line).Interface("panic", r).Msg("recovered while processing message")
		}
		if err != nil {
			h.record(line, err)
		}
	}()

	cmd, err := Parse(line)
	if err != nil {
		return err
	}
	return h.Apply(cmd)
}

// Reject counts a line that could not even be handed to the parser,
// such as one longer than the reader accepts. It is a corrupted message.
func (h *Handler) Reject(reason string) error {
	err := corrupted("%s", reason)
	h.record("", err)
	return err
}

// Apply runs a parsed command against the book.
func (h *Handler) Apply(cmd Command) error {
	switch cmd.Action {
	case ActionAdd:
		return h.book.Add(cmd.Timestamp, cmd.OrderID, cmd.Side, cmd.Size, cmd.Price)
	case ActionReduce:
		return h.book.Reduce(cmd.Timestamp, cmd.OrderID, cmd.Size)
	default:
		return corrupted("unknown action %q", cmd.Action)
	}
}

func (h *Handler) record(line string, err error) {
	kind := KindOf(err)
	h.errs.Record(kind)
	h.log.Debug().Str("kind", kind.String()).Str("line", line).Err(err).Msg("message rejected")
}

package service

import (
	"context"

	entrywal "feedbook/infra/wal/entry"
)

// ReplayFromWAL feeds a journal back through the service, keeping each
// line's original sequence number, and resumes the sequencer after the
// last one. It must run before any live input is accepted. Quotes whose
// seq is already in the outbox are not written again.
func ReplayFromWAL(ctx context.Context, dir string, s *FeedService) (uint64, error) {
	lastSeq, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch rec.Type {
		case entrywal.RecordLine:
			return s.apply(ctx, rec.Seq, string(rec.Data))
		case entrywal.RecordOversized:
			return s.rejectOversized(rec.Seq)
		default:
			return nil
		}
	})
	s.seq.Resume(lastSeq)

	if ferr := s.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		return lastSeq, err
	}

	s.log.Info().Str("dir", dir).Uint64("last_seq", lastSeq).Msg("journal replay completed")
	return lastSeq, nil
}

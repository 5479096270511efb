package snippets

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read size used by Stream.
const DefaultChunkSize = 4096

// Stream reads r chunk by chunk, feeding a Reassembler and calling emit for
// every decoded snippet. The context is checked before each read and after
// each chunk, so cancellation takes effect at the next chunk boundary and no
// snippet of a later chunk is emitted. An undecoded remainder at EOF is
// discarded. Stream returns nil on EOF, ctx.Err() when cancelled, and the
// read error otherwise.
func Stream(ctx context.Context, r io.Reader, emit func(Snippet)) error {
	var ra Reassembler
	buf := make([]byte, DefaultChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			for _, s := range ra.Feed(buf[:n]) {
				emit(s)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
	}
}

package admobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
)

// chunkStream decodes the streamed JSON array element by element, so large
// report windows never need the whole response in memory. It is finite and
// non-restartable: once drained or failed it stays terminated.
type chunkStream struct {
	body    io.ReadCloser
	dec     *json.Decoder
	started bool
	done    bool
}

func newChunkStream(body io.ReadCloser) *chunkStream {
	return &chunkStream{
		body: body,
		dec:  json.NewDecoder(body),
	}
}

// Next returns the next chunk of the response, io.EOF after the last one.
func (s *chunkStream) Next(ctx context.Context) (*admobdomain.ReportChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}

	if !s.started {
		tok, err := s.dec.Token()
		if err != nil {
			s.terminate()
			return nil, fmt.Errorf("reading report stream opening: %w", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			s.terminate()
			return nil, fmt.Errorf("unexpected report stream opening token: %v", tok)
		}
		s.started = true
	}

	if !s.dec.More() {
		s.terminate()
		return nil, io.EOF
	}

	var chunk admobdomain.ReportChunk
	if err := s.dec.Decode(&chunk); err != nil {
		s.terminate()
		return nil, fmt.Errorf("decoding report chunk: %w", err)
	}

	return &chunk, nil
}

func (s *chunkStream) Close() error {
	if s.done {
		return nil
	}
	s.terminate()
	return nil
}

func (s *chunkStream) terminate() {
	s.done = true
	_ = s.body.Close()
}

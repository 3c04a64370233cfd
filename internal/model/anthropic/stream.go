package anthropic

import (
	"context"
	"errors"
	"io"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/insight-edu/pageflow/internal/model"
)

// streamer adapts an Anthropic Messages streaming response to model.Streamer.
// Only the Executor's AI content slots (§4.6 Phase C) stream; Router and
// Planner output is always buffered via Complete.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	chunks chan model.Chunk

	mu       sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(stream *ssestream.Stream[sdk.MessageStreamEventUnion]) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &streamer{
		ctx:    ctx,
		cancel: cancel,
		stream: stream,
		chunks: make(chan model.Chunk, 32),
	}
	go s.run()
	return s
}

func (s *streamer) Recv() (model.Chunk, error) {
	select {
	case chunk, ok := <-s.chunks:
		if ok {
			return chunk, nil
		}
		if err := s.err(); err != nil {
			return model.Chunk{}, err
		}
		return model.Chunk{}, io.EOF
	case <-s.ctx.Done():
		err := s.ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		s.setErr(err)
		return model.Chunk{}, err
	}
}

func (s *streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *streamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	var usage model.TokenUsage
	for s.stream.Next() {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		event := s.stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				if !s.emit(model.Chunk{Type: model.ChunkText, Delta: delta.Text}) {
					return
				}
			case sdk.ThinkingDelta:
				if delta.Thinking == "" {
					continue
				}
				if !s.emit(model.Chunk{Type: model.ChunkThinking, Delta: delta.Thinking}) {
					return
				}
			}
		case sdk.MessageDeltaEvent:
			if ev.Usage.OutputTokens != 0 {
				usage.OutputTokens = int(ev.Usage.OutputTokens)
			}
			if reason := string(ev.Delta.StopReason); reason != "" {
				if !s.emit(model.Chunk{Type: model.ChunkStop, StopReason: reason, Usage: &usage}) {
					return
				}
			}
		}
	}
	if err := s.stream.Err(); err != nil {
		s.setErr(err)
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.setErr(err)
	}
}

func (s *streamer) emit(chunk model.Chunk) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *streamer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errSet || err == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.errSet = true
	s.finalErr = err
}

func (s *streamer) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

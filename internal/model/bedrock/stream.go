package bedrock

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/insight-edu/pageflow/internal/model"
)

// streamer adapts a Bedrock ConverseStream event stream to model.Streamer.
type streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *bedrockruntime.ConverseStreamEventStream

	chunks chan model.Chunk

	mu       sync.Mutex
	errSet   bool
	finalErr error
}

func newStreamer(out *bedrockruntime.ConverseStreamOutput) model.Streamer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &streamer{ctx: ctx, cancel: cancel, stream: out.GetStream(), chunks: make(chan model.Chunk, 32)}
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
	for event := range s.stream.Events() {
		select {
		case <-s.ctx.Done():
			s.setErr(s.ctx.Err())
			return
		default:
		}
		switch ev := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			if tb, ok := ev.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok && tb.Value != "" {
				if !s.emit(model.Chunk{Type: model.ChunkText, Delta: tb.Value}) {
					return
				}
			}
			if tb, ok := ev.Value.Delta.(*brtypes.ContentBlockDeltaMemberReasoningContent); ok {
				if rt, ok := tb.Value.(*brtypes.ReasoningContentBlockDeltaMemberText); ok && rt.Value != "" {
					if !s.emit(model.Chunk{Type: model.ChunkThinking, Delta: rt.Value}) {
						return
					}
				}
			}
		case *brtypes.ConverseStreamOutputMemberMetadata:
			if u := ev.Value.Usage; u != nil {
				usage.InputTokens = int(aws.ToInt32(u.InputTokens))
				usage.OutputTokens = int(aws.ToInt32(u.OutputTokens))
			}
		case *brtypes.ConverseStreamOutputMemberMessageStop:
			if !s.emit(model.Chunk{Type: model.ChunkStop, StopReason: string(ev.Value.StopReason), Usage: &usage}) {
				return
			}
		}
	}
	if err := s.stream.Err(); err != nil {
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

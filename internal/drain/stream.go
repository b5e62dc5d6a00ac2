package drain

import (
	"io"
	"time"
)

// Stream wires one pipe through a Pipeline into a LineParser.
//
// Lifecycle:
//
//  1. s := NewStream(...)
//  2. s.Start()              // reader + parser goroutines
//  3. <-s.Done()             // closed once every queued line was parsed
//  4. s.Close()              // only to abandon a pipe that never reaches EOF
type Stream struct {
	reader   *PipeReader
	pipeline *Pipeline
	parser   LineParser
	done     chan struct{}
}

// NewStream creates a stream named name over r.
func NewStream(name string, r io.ReadCloser, parser LineParser, bufferSize int) *Stream {
	if parser == nil {
		parser = NoopParser{}
	}
	pipeline := NewPipeline(name, bufferSize)
	return &Stream{
		reader:   NewPipeReader(r, pipeline),
		pipeline: pipeline,
		parser:   parser,
		done:     make(chan struct{}),
	}
}

// Start launches the reader and parser goroutines. Call once.
func (s *Stream) Start() {
	go s.reader.Run()
	go func() {
		defer close(s.done)
		s.pipeline.RunParser(s.parser)
	}()
}

// Done is closed after the pipe reached EOF (or was closed) and the parser
// consumed everything queued.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close abandons the pipe.
func (s *Stream) Close() error {
	return s.reader.Close()
}

// Pipeline returns the stream's pipeline, for stats.
func (s *Stream) Pipeline() *Pipeline {
	return s.pipeline
}

// WaitAll waits until every stream is done or timeout elapses. On timeout the
// remaining pipes are closed and WaitAll returns false. Streams are always
// closed before returning.
func WaitAll(timeout time.Duration, streams ...*Stream) bool {
	allDone := make(chan struct{})
	go func() {
		for _, s := range streams {
			<-s.Done()
		}
		close(allDone)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	finished := true
	select {
	case <-allDone:
	case <-timer.C:
		finished = false
	}

	for _, s := range streams {
		_ = s.Close()
	}
	return finished
}

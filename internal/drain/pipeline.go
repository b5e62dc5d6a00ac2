// Package drain reads a child process's output streams without ever
// blocking the child.
//
// Two layers per stream:
//
//	Layer 1 (PipeReader): reads lines as fast as the pipe delivers them and
//	                      drops a line if the parser is behind
//	Layer 2 (Parser):     consumes queued lines at its own pace
//
// A full pipe buffer would stall the child, so Layer 1 never waits on Layer 2.
package drain

import (
	"sync"
	"sync/atomic"
)

// LineParser consumes one line of child output.
type LineParser interface {
	ParseLine(line string)
}

// DefaultBufferSize is the per-stream line queue length.
const DefaultBufferSize = 1000

// Pipeline is a bounded, lossy line queue between a reader and a parser.
type Pipeline struct {
	name       string // "stdout" or "stderr"
	lineChan   chan string
	closeOnce  sync.Once
	bufferSize int

	linesRead    atomic.Int64
	linesDropped atomic.Int64
	linesParsed  atomic.Int64
}

// NewPipeline creates a pipeline with the given queue length.
func NewPipeline(name string, bufferSize int) *Pipeline {
	if bufferSize < 1 {
		bufferSize = DefaultBufferSize
	}
	return &Pipeline{
		name:       name,
		bufferSize: bufferSize,
		lineChan:   make(chan string, bufferSize),
	}
}

// FeedLine queues a line. Returns false if the line was dropped because the
// queue is full. Never blocks.
func (p *Pipeline) FeedLine(line string) bool {
	p.linesRead.Add(1)

	select {
	case p.lineChan <- line:
		return true
	default:
		p.linesDropped.Add(1)
		return false
	}
}

// CloseChannel signals the parser that no more lines will arrive.
// Safe to call multiple times.
func (p *Pipeline) CloseChannel() {
	p.closeOnce.Do(func() {
		close(p.lineChan)
	})
}

// RunParser consumes lines until CloseChannel is called and the queue is empty.
// MUST run in its own goroutine.
func (p *Pipeline) RunParser(parser LineParser) {
	for line := range p.lineChan {
		parser.ParseLine(line)
		p.linesParsed.Add(1)
	}
}

// Stats returns lines read, dropped and parsed so far.
func (p *Pipeline) Stats() (read, dropped, parsed int64) {
	return p.linesRead.Load(), p.linesDropped.Load(), p.linesParsed.Load()
}

// DropRate returns dropped/read as a fraction.
func (p *Pipeline) DropRate() float64 {
	read := p.linesRead.Load()
	if read == 0 {
		return 0
	}
	return float64(p.linesDropped.Load()) / float64(read)
}

// Name returns the stream name.
func (p *Pipeline) Name() string {
	return p.name
}

// NoopParser discards every line.
type NoopParser struct{}

// ParseLine does nothing.
func (NoopParser) ParseLine(string) {}

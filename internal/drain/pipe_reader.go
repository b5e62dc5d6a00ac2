package drain

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync/atomic"
)

// MaxLineSize caps how much of a single line is kept. The remainder of an
// oversized line is read and discarded so the pipe keeps flowing.
const MaxLineSize = 64 * 1024

// PipeReader reads lines from the read end of a child's stdout or stderr
// pipe and feeds them into a Pipeline.
type PipeReader struct {
	reader   io.ReadCloser
	pipeline *Pipeline
	closed   atomic.Bool

	bytesRead atomic.Int64
	linesRead atomic.Int64
}

// NewPipeReader creates a reader over r. Close closes r.
func NewPipeReader(r io.ReadCloser, pipeline *Pipeline) *PipeReader {
	return &PipeReader{
		reader:   r,
		pipeline: pipeline,
	}
}

// Run reads until EOF, a read error or Close. Always closes the pipeline
// channel on exit so the parser goroutine terminates.
func (p *PipeReader) Run() {
	defer p.pipeline.CloseChannel()

	br := bufio.NewReaderSize(p.reader, 4096)
	var line strings.Builder

	for {
		chunk, isPrefix, err := br.ReadLine()
		if len(chunk) > 0 {
			p.bytesRead.Add(int64(len(chunk)))
			if room := MaxLineSize - line.Len(); room > 0 {
				if len(chunk) > room {
					chunk = chunk[:room]
				}
				line.Write(chunk)
			}
		}
		if err != nil {
			// Flush a final unterminated line
			if line.Len() > 0 {
				p.emit(line.String())
			}
			return
		}
		if isPrefix {
			continue
		}
		p.emit(line.String())
		line.Reset()
	}
}

func (p *PipeReader) emit(line string) {
	p.linesRead.Add(1)
	p.pipeline.FeedLine(line)
}

// Close closes the underlying pipe, which unblocks a pending Run.
// Idempotent.
func (p *PipeReader) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err := p.reader.Close()
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

// Stats returns (bytesRead, linesRead, healthy).
func (p *PipeReader) Stats() (bytesRead int64, linesRead int64, healthy bool) {
	return p.bytesRead.Load(), p.linesRead.Load(), !p.closed.Load()
}

package drain

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// collectParser records every line it sees.
type collectParser struct {
	mu    sync.Mutex
	lines []string
}

func (c *collectParser) ParseLine(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collectParser) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestPipeline_FeedAndParse(t *testing.T) {
	p := NewPipeline("stdout", 10)
	parser := &collectParser{}

	done := make(chan struct{})
	go func() {
		p.RunParser(parser)
		close(done)
	}()

	for _, line := range []string{"a", "b", "c"} {
		if !p.FeedLine(line) {
			t.Errorf("FeedLine(%q) dropped", line)
		}
	}
	p.CloseChannel()
	<-done

	got := parser.Lines()
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("parsed %v, want [a b c]", got)
	}

	read, dropped, parsed := p.Stats()
	if read != 3 || dropped != 0 || parsed != 3 {
		t.Errorf("Stats() = (%d, %d, %d), want (3, 0, 3)", read, dropped, parsed)
	}
}

func TestPipeline_DropsWhenFull(t *testing.T) {
	p := NewPipeline("stderr", 2)

	// No parser running, so the third line has nowhere to go
	p.FeedLine("1")
	p.FeedLine("2")
	if p.FeedLine("3") {
		t.Error("FeedLine should drop when the queue is full")
	}

	_, dropped, _ := p.Stats()
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if rate := p.DropRate(); rate < 0.33 || rate > 0.34 {
		t.Errorf("DropRate() = %f, want ~0.333", rate)
	}
}

func TestPipeline_CloseTwice(t *testing.T) {
	p := NewPipeline("stdout", 1)
	p.CloseChannel()
	p.CloseChannel()
}

func TestPipeline_DefaultBufferSize(t *testing.T) {
	p := NewPipeline("stdout", 0)
	if p.bufferSize != DefaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", p.bufferSize, DefaultBufferSize)
	}
	if p.Name() != "stdout" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestPipeReader_Lines(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []string
	}{
		{"terminated", "one\ntwo\n", []string{"one", "two"}},
		{"unterminated_tail", "one\ntwo", []string{"one", "two"}},
		{"crlf", "one\r\ntwo\r\n", []string{"one", "two"}},
		{"blank_line", "one\n\nthree\n", []string{"one", "", "three"}},
		{"empty", "", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPipeline("stdout", 100)
			r := NewPipeReader(io.NopCloser(strings.NewReader(tc.input)), p)
			r.Run()

			var got []string
			for line := range p.lineChan {
				got = append(got, line)
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") || len(got) != len(tc.want) {
				t.Errorf("lines = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPipeReader_LongLineCapped(t *testing.T) {
	input := strings.Repeat("x", MaxLineSize*2) + "\nnext\n"

	p := NewPipeline("stdout", 10)
	r := NewPipeReader(io.NopCloser(strings.NewReader(input)), p)
	r.Run()

	var got []string
	for line := range p.lineChan {
		got = append(got, line)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if len(got[0]) != MaxLineSize {
		t.Errorf("first line length = %d, want %d", len(got[0]), MaxLineSize)
	}
	if got[1] != "next" {
		t.Errorf("second line = %q, want next", got[1])
	}

	bytesRead, linesRead, _ := r.Stats()
	if bytesRead != int64(MaxLineSize*2+len("next")) {
		t.Errorf("bytesRead = %d", bytesRead)
	}
	if linesRead != 2 {
		t.Errorf("linesRead = %d, want 2", linesRead)
	}
}

func TestPipeReader_CloseIdempotent(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := NewPipeReader(pr, NewPipeline("stdout", 1))
	if err := r.Close(); err != nil {
		t.Errorf("first Close() = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, _, healthy := r.Stats(); healthy {
		t.Error("closed reader should report unhealthy")
	}
}

func TestStream_DrainsToEOF(t *testing.T) {
	parser := &collectParser{}
	s := NewStream("stdout", io.NopCloser(strings.NewReader("hello\nworld\n")), parser, 10)
	s.Start()

	if !WaitAll(time.Second, s) {
		t.Fatal("WaitAll timed out on a finite reader")
	}
	if got := parser.Lines(); len(got) != 2 || got[1] != "world" {
		t.Errorf("lines = %v", got)
	}
}

func TestStream_NilParser(t *testing.T) {
	s := NewStream("stderr", io.NopCloser(strings.NewReader("x\n")), nil, 1)
	s.Start()
	if !WaitAll(time.Second, s) {
		t.Fatal("WaitAll timed out")
	}
}

func TestWaitAll_TimeoutClosesPipes(t *testing.T) {
	// A writer that is never closed keeps the stream open forever
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewStream("stdout", pr, &collectParser{}, 10)
	s.Start()

	start := time.Now()
	if WaitAll(50*time.Millisecond, s) {
		t.Fatal("WaitAll should time out on an open pipe")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitAll took %v", elapsed)
	}

	// Closing the read end unblocks the reader, so the stream finishes
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Error("stream not done after WaitAll closed it")
	}
}

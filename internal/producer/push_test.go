package producer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"

	"github.com/markis/omnom/internal/logging"
	logtest "github.com/markis/omnom/internal/logging/test"
	"github.com/markis/omnom/internal/metrics"
	"github.com/markis/omnom/internal/nom"
)

type scriptedProducer struct {
	states []State
	next   int
}

func (p *scriptedProducer) Produce() State {
	if p.next >= len(p.states) {
		return Failed(nom.ErrExhausted, nil)
	}
	s := p.states[p.next]
	p.next++
	return s
}

func (p *scriptedProducer) Exhausted() bool {
	return p.next >= len(p.states)
}

type stallingProducer struct{}

func (stallingProducer) Produce() State  { return Continue() }
func (stallingProducer) Exhausted() bool { return false }

func memory(t *testing.T, input string, size int) *MemoryProducer {
	t.Helper()
	p, err := NewMemoryProducer([]byte(input), size)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// consumeAll is a callback that accepts whatever view it is given.
func consumeAll(views *[]string) Callback[int] {
	return func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, int] {
		view := start.Output()
		*views = append(*views, string(view))
		return nom.Done(view[len(view):], len(view))
	}
}

func fastRetry(n uint64) Option {
	return WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, n)
	})
}

func TestPushCallbackCount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		size  int
		views []string
	}{
		{"uneven tail", "abcdefghi", 4, []string{"abcd", "efgh", "i"}},
		{"exact multiple", "abcdefgh", 4, []string{"abcd", "efgh"}},
		{"empty", "", 4, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var views []string
			summary, err := Push(t.Context(), memory(t, tt.input, tt.size), consumeAll(&views))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.views, views); diff != "" {
				t.Errorf("views mismatch (-want +got):\n%s", diff)
			}
			if summary.Chunks != len(tt.views) || summary.Done != len(tt.views) {
				t.Errorf("summary = %+v", summary)
			}
			if summary.Bytes != int64(len(tt.input)) {
				t.Errorf("Bytes = %d, want %d", summary.Bytes, len(tt.input))
			}
		})
	}
}

func TestPushCarriesRemainder(t *testing.T) {
	line := nom.Chain(func(b nom.Bindings) string {
		return string(nom.Value[[]byte](b, "text"))
	}, nom.Bind("text", nom.TakeUntil([]byte("\n"))), nom.Bind("nl", nom.Tag([]byte("\n"))))

	var lines []string
	collect := func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, []string] {
		res := nom.FlatMap(start, nom.Many(line))
		if res.IsDone() {
			lines = append(lines, res.Output()...)
		}
		return res
	}

	summary, err := Push[[]string](t.Context(), memory(t, "x\ny\nzz\n", 3), collect)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y", "zz"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if summary.Carried != 0 {
		t.Errorf("Carried = %d, want 0", summary.Carried)
	}
}

func TestPushResumesSuspendedParse(t *testing.T) {
	fresh := 0
	p := Parse(nom.Then(nom.Tag([]byte("abcd")), nom.Take(1)))
	counted := func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, []byte] {
		fresh++
		return p(start)
	}

	var got []byte
	summary, err := Push[[]byte](t.Context(), memory(t, "abcde", 2), func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, []byte] {
		res := counted(start)
		return nom.Map(res, func(v []byte) []byte {
			got = v
			return v
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if fresh != 1 {
		t.Errorf("callback entered %d times, want 1", fresh)
	}
	if string(got) != "e" {
		t.Errorf("output = %q, want %q", got, "e")
	}
	if summary.Chunks != 3 || summary.Done != 1 || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestPushContinuesAfterParseError(t *testing.T) {
	logger := logtest.New()
	summary, err := Push(t.Context(), memory(t, "abxxab", 2), Parse(nom.Tag([]byte("ab"))), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Done != 2 {
		t.Errorf("Done = %d, want 2", summary.Done)
	}
	want := []ChunkError{{Chunk: 2, Code: nom.ErrTag}}
	if diff := cmp.Diff(want, summary.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(summary.Err(), nom.ErrTag) {
		t.Errorf("Err() = %v, want ErrTag", summary.Err())
	}
	if !logger.Contains(logging.Warn, "parse error on chunk 2") {
		t.Errorf("expected warning, got %v", logger.Entries())
	}
}

func TestPushCarryOverflow(t *testing.T) {
	summary, err := Push(t.Context(), memory(t, "0123456789", 2), Parse(nom.Take(100)), WithMaxCarry(3))
	if !errors.Is(err, nom.ErrCarryOverflow) {
		t.Fatalf("Push() error = %v, want carry overflow", err)
	}
	if summary.Carried != 4 {
		t.Errorf("Carried = %d, want 4", summary.Carried)
	}
}

func TestPushIncompleteAtEOF(t *testing.T) {
	summary, err := Push(t.Context(), memory(t, "abc", 2), Parse(nom.Take(10)))
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Incomplete {
		t.Error("Incomplete should be set")
	}
	if !errors.Is(summary.Err(), nom.ErrIncompleteAtEOF) {
		t.Errorf("Err() = %v, want ErrIncompleteAtEOF", summary.Err())
	}
	if summary.Carried != 3 {
		t.Errorf("Carried = %d, want 3", summary.Carried)
	}
}

func TestPushSkipsEmptyFinalChunk(t *testing.T) {
	src, err := NewReaderProducer(bytes.NewReader([]byte("abcdefgh")), 4)
	if err != nil {
		t.Fatal(err)
	}
	var views []string
	summary, err := Push(t.Context(), src, consumeAll(&views))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"abcd", "efgh"}, views); diff != "" {
		t.Errorf("views mismatch (-want +got):\n%s", diff)
	}
	if summary.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", summary.Chunks)
	}

	tag := &scriptedProducer{states: []State{Data([]byte("GET ")), Data([]byte("GET ")), EOF(nil)}}
	summary, err = Push(t.Context(), tag, Parse(nom.Then(nom.Tag([]byte("GET")), nom.Rest())))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Chunks != 2 || summary.Done != 2 || summary.Incomplete || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestPushDeliversEmptyFinalChunkWithCarry(t *testing.T) {
	p := &scriptedProducer{states: []State{Data([]byte("ab")), EOF(nil)}}
	summary, err := Push(t.Context(), p, Parse(nom.Take(3)))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Chunks != 2 || !summary.Incomplete {
		t.Errorf("summary = %+v", summary)
	}
	if !errors.Is(summary.Err(), nom.ErrIncompleteAtEOF) {
		t.Errorf("Err() = %v, want ErrIncompleteAtEOF", summary.Err())
	}
}

func TestPushRetriesContinue(t *testing.T) {
	p := &scriptedProducer{states: []State{
		Continue(),
		Continue(),
		Data([]byte("ab")),
		Continue(),
		EOF([]byte("cd")),
	}}
	var views []string
	summary, err := Push(t.Context(), p, consumeAll(&views), fastRetry(2))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Continues != 3 {
		t.Errorf("Continues = %d, want 3", summary.Continues)
	}
	if diff := cmp.Diff([]string{"ab", "cd"}, views); diff != "" {
		t.Errorf("views mismatch (-want +got):\n%s", diff)
	}
}

func TestPushStalled(t *testing.T) {
	summary, err := Push(t.Context(), stallingProducer{}, consumeAll(new([]string)), fastRetry(3))
	if !errors.Is(err, nom.ErrStalled) {
		t.Fatalf("Push() error = %v, want stalled", err)
	}
	if summary.Continues != 4 {
		t.Errorf("Continues = %d, want 4", summary.Continues)
	}
}

func TestPushProducerFailure(t *testing.T) {
	cause := errors.New("connection reset")
	p := &scriptedProducer{states: []State{
		Data([]byte("ab")),
		Failed(nom.ErrProducer, cause),
		EOF([]byte("never")),
	}}
	var views []string
	summary, err := Push(t.Context(), p, consumeAll(&views))
	if !errors.Is(err, cause) || !errors.Is(err, nom.ErrProducer) {
		t.Fatalf("Push() error = %v, want producer failure", err)
	}
	if summary.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1", summary.Chunks)
	}
}

func TestPushStopsWhenExhausted(t *testing.T) {
	p := memory(t, "ab", 4)
	p.Produce()
	var views []string
	summary, err := Push(t.Context(), p, consumeAll(&views))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Chunks != 0 || len(views) != 0 {
		t.Errorf("exhausted producer should not be pushed, got %+v", summary)
	}
}

func TestPushCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	var views []string
	_, err := Push(ctx, memory(t, "abc", 1), consumeAll(&views))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Push() error = %v, want canceled", err)
	}
	if len(views) != 0 {
		t.Errorf("callback ran %d times after cancel", len(views))
	}
}

func TestPushKeepsViewsIntact(t *testing.T) {
	type seen struct {
		view []byte
		copy []byte
	}
	var kept []seen
	keep := func(start nom.Outcome[nom.Unit, []byte]) nom.Outcome[[]byte, int] {
		v := start.Output()
		kept = append(kept, seen{view: v, copy: bytes.Clone(v)})
		// Consume one byte, leaving the rest to be carried.
		if len(v) == 0 {
			return nom.Done(v, 0)
		}
		return nom.Done(v[1:], 1)
	}

	p, err := NewReaderProducer(bytes.NewReader([]byte("abcdefghij")), 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Push[int](t.Context(), p, keep); err != nil {
		t.Fatal(err)
	}
	for i, k := range kept {
		if !bytes.Equal(k.view, k.copy) {
			t.Errorf("view %d changed from %q to %q", i, k.copy, k.view)
		}
	}
}

func TestPushMetrics(t *testing.T) {
	m := metrics.New()
	if _, err := Push(t.Context(), memory(t, "abcdefghi", 4), consumeAll(new([]string)), WithMetrics(m)); err != nil {
		t.Fatal(err)
	}
	all := m.All()
	for key, want := range map[string]uint64{
		"counter_" + metrics.PushChunks: 3,
		"counter_" + metrics.PushBytes:  9,
		"counter_" + metrics.ParseDone:  3,
	} {
		if got := all[key]; got != want {
			t.Errorf("%s = %v, want %d", key, got, want)
		}
	}
	if _, ok := all["timer_"+metrics.Push+"_ns"]; !ok {
		t.Error("push timer missing")
	}
}

func TestRetryPolicyBackOff(t *testing.T) {
	b := RetryPolicy{MaxRetries: 2, InitialInterval: 1, MaxInterval: 1}.BackOff()
	b.Reset()
	for i := 0; i < 2; i++ {
		if d := b.NextBackOff(); d == backoff.Stop {
			t.Fatalf("retry %d stopped early", i)
		}
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		t.Errorf("NextBackOff() = %v, want Stop", d)
	}
}

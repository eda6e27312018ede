package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bkerrors "github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/resilience"
)

func testOptions(batchSize, concurrency int) Options {
	return Options{
		BatchSize:      batchSize,
		MaxConcurrency: concurrency,
		Retry:          resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond},
	}
}

func TestChunks_Partitioning(t *testing.T) {
	tests := []struct {
		n, size   int
		wantSizes []int
	}{
		{5000, 2048, []int{2048, 2048, 904}},
		{10, 10, []int{10}},
		{10, 3, []int{3, 3, 3, 1}},
		{1, 50, []int{1}},
		{0, 10, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d_size=%d", tt.n, tt.size), func(t *testing.T) {
			chunks := Chunks(tt.n, tt.size)
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("expected %d chunks, got %d", len(tt.wantSizes), len(chunks))
			}
			next := 0
			for i, c := range chunks {
				if c.Len() != tt.wantSizes[i] {
					t.Errorf("chunk %d: expected size %d, got %d", i, tt.wantSizes[i], c.Len())
				}
				if c.Start != next {
					t.Errorf("chunk %d: expected contiguous start %d, got %d", i, next, c.Start)
				}
				if c.Index != i {
					t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
				}
				next = c.End
			}
			if next != tt.n {
				t.Errorf("expected chunks to cover all %d items, covered %d", tt.n, next)
			}
		})
	}
}

func TestRun_ResultsIndexAligned(t *testing.T) {
	items := make([]int, 237)
	for i := range items {
		items[i] = i
	}

	results, err := Run(context.Background(), items, testOptions(10, 8), func(_ context.Context, n int) (string, error) {
		return strconv.Itoa(n * 2), nil
	}, nil)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d: expected index %d, got %d", i, i, r.Index)
		}
		if r.Value != strconv.Itoa(i*2) {
			t.Errorf("result %d: expected %q, got %q", i, strconv.Itoa(i*2), r.Value)
		}
	}
}

func TestRun_SingleItemFailureIsIsolated(t *testing.T) {
	const k = 50
	items := make([]int, k)
	for i := range items {
		items[i] = i
	}
	boom := errors.New("boom")

	results, err := Run(context.Background(), items, testOptions(7, 4), func(_ context.Context, n int) (int, error) {
		if n == 23 {
			return 0, boom
		}
		return n, nil
	}, nil)

	if err != nil {
		t.Fatalf("engine must not fail on item errors: %v", err)
	}
	succeeded, failed := Tally(results)
	if succeeded != k-1 || failed != 1 {
		t.Errorf("expected %d successes and 1 failure, got %d/%d", k-1, succeeded, failed)
	}
	if !errors.Is(results[23].Err, boom) {
		t.Errorf("expected failure recorded at index 23, got %v", results[23].Err)
	}
}

func TestRun_ChunkCallbackCumulative(t *testing.T) {
	items := make([]int, 25)
	var calls []int

	_, err := Run(context.Background(), items, testOptions(10, 1), func(_ context.Context, n int) (int, error) {
		return n, nil
	}, func(completed, total int) {
		if total != 25 {
			t.Errorf("expected total 25, got %d", total)
		}
		calls = append(calls, completed)
	})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Single worker processes chunks in order: 10, 20, 25.
	want := []int{10, 20, 25}
	if len(calls) != len(want) {
		t.Fatalf("expected %d callbacks, got %d: %v", len(want), len(calls), calls)
	}
	for i, c := range calls {
		if c != want[i] {
			t.Errorf("callback %d: expected %d, got %d", i, want[i], c)
		}
	}
}

func TestRun_ConcurrencyCapEnforced(t *testing.T) {
	const cap = 3
	var inFlight, peak int32
	items := make([]int, 60)

	_, err := Run(context.Background(), items, testOptions(5, cap), func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return n, nil
	}, nil)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > cap {
		t.Errorf("expected at most %d chunks in flight, observed %d", cap, p)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	items := []int{1, 2, 3}
	id := func(_ context.Context, n int) (int, error) { return n, nil }

	if _, err := Run(context.Background(), items, testOptions(0, 1), id, nil); !bkerrors.HasCode(err, bkerrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for batch size 0, got %v", err)
	}
	if _, err := Run(context.Background(), items, testOptions(1, 0), id, nil); !bkerrors.HasCode(err, bkerrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for concurrency 0, got %v", err)
	}
	if _, err := Run[int, int](context.Background(), items, testOptions(1, 1), nil, nil); !bkerrors.HasCode(err, bkerrors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for nil fn, got %v", err)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	results, err := Run(context.Background(), []int{}, testOptions(10, 2), func(_ context.Context, n int) (int, error) {
		return n, nil
	}, nil)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRunBulk_HappyPath(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	results, err := RunBulk(context.Background(), items, testOptions(2, 2),
		func(_ context.Context, chunk []string) ([]string, error) {
			out := make([]string, len(chunk))
			for i, s := range chunk {
				out[i] = s + "!"
			}
			return out, nil
		}, nil, nil)

	if err != nil {
		t.Fatalf("RunBulk failed: %v", err)
	}
	for i, r := range results {
		if !r.OK() {
			t.Fatalf("result %d failed: %v", i, r.Err)
		}
		if r.Value != items[i]+"!" {
			t.Errorf("result %d: expected %q, got %q", i, items[i]+"!", r.Value)
		}
	}
}

func TestRunBulk_RetriesThenDegrades(t *testing.T) {
	items := []int{1, 2, 3, 4}
	var bulkCalls, itemCalls int32

	results, err := RunBulk(context.Background(), items, testOptions(4, 1),
		func(_ context.Context, chunk []int) ([]int, error) {
			atomic.AddInt32(&bulkCalls, 1)
			return nil, errors.New("provider down")
		},
		func(_ context.Context, n int) (int, error) {
			atomic.AddInt32(&itemCalls, 1)
			return n * 10, nil
		}, nil)

	if err != nil {
		t.Fatalf("RunBulk failed: %v", err)
	}
	if bulkCalls != 3 {
		t.Errorf("expected 3 bulk attempts before degrade, got %d", bulkCalls)
	}
	if itemCalls != 4 {
		t.Errorf("expected 4 per-item fallback calls, got %d", itemCalls)
	}
	// Degrade with a working fallback loses no data.
	for i, r := range results {
		if !r.OK() {
			t.Fatalf("result %d failed after degrade: %v", i, r.Err)
		}
		if r.Value != items[i]*10 {
			t.Errorf("result %d: expected %d, got %d", i, items[i]*10, r.Value)
		}
	}
}

func TestRunBulk_DegradeIsolatesItemFailures(t *testing.T) {
	items := []int{1, 2, 3}

	results, err := RunBulk(context.Background(), items, testOptions(3, 1),
		func(_ context.Context, chunk []int) ([]int, error) {
			return nil, errors.New("bulk broken")
		},
		func(_ context.Context, n int) (int, error) {
			if n == 2 {
				return 0, errors.New("item broken")
			}
			return n, nil
		}, nil)

	if err != nil {
		t.Fatalf("RunBulk failed: %v", err)
	}
	succeeded, failed := Tally(results)
	if succeeded != 2 || failed != 1 {
		t.Errorf("expected 2 successes and 1 failure, got %d/%d", succeeded, failed)
	}
}

func TestRunBulk_NilFallbackMarksChunkItems(t *testing.T) {
	items := []int{1, 2}
	boom := errors.New("no bulk for you")

	results, err := RunBulk[int, int](context.Background(), items, testOptions(2, 1),
		func(_ context.Context, chunk []int) ([]int, error) {
			return nil, boom
		}, nil, nil)

	if err != nil {
		t.Fatalf("RunBulk failed: %v", err)
	}
	for i, r := range results {
		if !errors.Is(r.Err, boom) {
			t.Errorf("result %d: expected bulk error, got %v", i, r.Err)
		}
	}
}

func TestRunBulk_LengthMismatchTriggersDegrade(t *testing.T) {
	items := []int{1, 2, 3}

	results, err := RunBulk(context.Background(), items, testOptions(3, 1),
		func(_ context.Context, chunk []int) ([]int, error) {
			return []int{1}, nil // wrong cardinality
		},
		func(_ context.Context, n int) (int, error) {
			return n, nil
		}, nil)

	if err != nil {
		t.Fatalf("RunBulk failed: %v", err)
	}
	for i, r := range results {
		if !r.OK() {
			t.Fatalf("result %d: expected fallback success, got %v", i, r.Err)
		}
	}
}

func TestRun_CancellationSkipsPendingChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 100)

	var once sync.Once
	results, err := Run(ctx, items, testOptions(10, 1), func(_ context.Context, n int) (int, error) {
		once.Do(cancel)
		return n, nil
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("expected %d results even on cancellation, got %d", len(items), len(results))
	}
	// Items of chunks that never started carry the cancellation error.
	last := results[len(results)-1]
	if !errors.Is(last.Err, context.Canceled) {
		t.Errorf("expected trailing items marked canceled, got %v", last.Err)
	}
}

func TestValues(t *testing.T) {
	results := []Result[int]{
		{Index: 0, Value: 1},
		{Index: 1, Err: errors.New("x")},
		{Index: 2, Value: 3},
	}
	vals := Values(results)
	if len(vals) != 2 || vals[0] != 1 || vals[1] != 3 {
		t.Errorf("expected [1 3], got %v", vals)
	}
}

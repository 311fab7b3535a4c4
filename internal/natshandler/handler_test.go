package natshandler_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/natshandler"
)

type stubProvider struct {
	executeFn func(ctx context.Context, language, sourceCode string) code.Result
}

func (s *stubProvider) Execute(ctx context.Context, language, sourceCode string) code.Result {
	return s.executeFn(ctx, language, sourceCode)
}

var (
	_ code.Provider = (*stubProvider)(nil)
	_ code.Provider = (*trackingProvider)(nil)
)

func TestHandleExecuteRequest(t *testing.T) {
	p := &stubProvider{
		executeFn: func(_ context.Context, language, sourceCode string) code.Result {
			if language != "javascript" || sourceCode != "console.log(5)" {
				t.Errorf("unexpected request %q %q", language, sourceCode)
			}
			return code.Result{Success: true, Output: "5", Outcome: code.OutcomeAccepted}
		},
	}

	out := natshandler.HandleExecuteRequest(context.Background(), p,
		[]byte(`{"language":"javascript","source_code":"console.log(5)"}`))

	if got := string(out); got != `{"success":true,"output":"5"}` {
		t.Errorf("unexpected reply %s", got)
	}
}

func TestHandleExecuteRequest_JudgedFailure(t *testing.T) {
	p := &stubProvider{
		executeFn: func(context.Context, string, string) code.Result {
			return code.Result{Error: "Compilation error", Outcome: code.OutcomeCompileError}
		},
	}

	out := natshandler.HandleExecuteRequest(context.Background(), p, []byte(`{"language":"java","source_code":"x"}`))

	var res code.Result
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Error != "Compilation error" || res.Output != "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHandleExecuteRequest_InvalidJSON(t *testing.T) {
	p := &stubProvider{
		executeFn: func(context.Context, string, string) code.Result {
			t.Fatal("provider must not be called for malformed requests")
			return code.Result{}
		},
	}

	out := natshandler.HandleExecuteRequest(context.Background(), p, []byte(`not json`))

	var res code.Result
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatal(err)
	}
	if res.Success || !strings.HasPrefix(res.Error, "invalid request: ") {
		t.Errorf("unexpected result %+v", res)
	}
}

// runServer starts an in-process NATS server and returns a connection to it.
func runServer(t *testing.T) *nats.Conn {
	t.Helper()
	s, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatal(err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(s.Shutdown)

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(nc.Close)
	return nc
}

// trackingProvider records how many executions overlap.
type trackingProvider struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	run      func()
}

func (p *trackingProvider) Execute(context.Context, string, string) code.Result {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if cur <= old || p.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	p.run()
	return code.Result{Success: true, Output: "ok", Outcome: code.OutcomeAccepted}
}

// sendConcurrently fires n requests at once and returns their decoded replies.
func sendConcurrently(t *testing.T, nc *nats.Conn, n int) []code.Result {
	t.Helper()
	results := make([]code.Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := nc.Request(natshandler.ExecuteSubject,
				[]byte(`{"language":"python","source_code":"print(1)"}`), 5*time.Second)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = json.Unmarshal(msg.Data, &results[i])
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	return results
}

func TestSubscribe_HandlesRequestsConcurrently(t *testing.T) {
	nc := runServer(t)

	const n = 4
	all := make(chan struct{})
	var once sync.Once
	p := &trackingProvider{}
	p.run = func() {
		if p.inFlight.Load() == n {
			once.Do(func() { close(all) })
		}
		select {
		case <-all:
		case <-time.After(2 * time.Second):
		}
	}

	r, err := natshandler.Subscribe(context.Background(), nc, p, n, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	start := time.Now()
	for i, res := range sendConcurrently(t, nc, n) {
		if !res.Success || res.Output != "ok" {
			t.Errorf("reply %d: unexpected result %+v", i, res)
		}
	}
	if got := p.peak.Load(); got != n {
		t.Errorf("expected %d requests in flight together, peak was %d", n, got)
	}
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("requests were not handled in parallel (%v)", elapsed)
	}
}

func TestSubscribe_BoundsInFlightRequests(t *testing.T) {
	nc := runServer(t)

	p := &trackingProvider{run: func() { time.Sleep(100 * time.Millisecond) }}
	r, err := natshandler.Subscribe(context.Background(), nc, p, 2, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	results := sendConcurrently(t, nc, 6)
	if err := r.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}

	for i, res := range results {
		if !res.Success {
			t.Errorf("reply %d: unexpected result %+v", i, res)
		}
	}
	if got := p.peak.Load(); got > 2 {
		t.Errorf("expected at most 2 requests in flight, peak was %d", got)
	}
}

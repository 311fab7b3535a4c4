package natshandler

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
)

// ExecuteSubject carries execution requests; the reply subject receives a code.Result.
const ExecuteSubject = "code.execute.request"

// DefaultConcurrency is used when Subscribe is given a non-positive limit.
const DefaultConcurrency = 8

// Responder answers execution requests. Each request runs on its own
// goroutine; at most the configured number run at once, and further
// messages wait in the subscription's pending queue.
type Responder struct {
	sub    *nats.Subscription
	sem    chan struct{}
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Subscribe starts answering requests on ExecuteSubject. Executions run
// with ctx, so cancelling it cuts in-flight judge calls short.
func Subscribe(ctx context.Context, nc *nats.Conn, p code.Provider, concurrency int, logger *zap.Logger) (*Responder, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	r := &Responder{
		sem:    make(chan struct{}, concurrency),
		logger: logger,
	}

	sub, err := nc.Subscribe(ExecuteSubject, func(msg *nats.Msg) {
		if msg.Reply == "" {
			logger.Warn("dropping execution request without reply subject")
			return
		}

		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		r.wg.Add(1)
		r.mu.Unlock()

		// Blocks the dispatch goroutine only while every slot is busy.
		r.sem <- struct{}{}
		go func() {
			defer func() {
				<-r.sem
				r.wg.Done()
			}()
			r.respond(ctx, p, msg)
		}()
	})
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Responder) respond(ctx context.Context, p code.Provider, msg *nats.Msg) {
	resData := HandleExecuteRequest(ctx, p, msg.Data)
	if err := msg.Respond(resData); err != nil {
		r.logger.Error("failed to publish execution result",
			zap.String("reply", msg.Reply),
			zap.Error(err))
	}
}

// Stop unsubscribes and waits for in-flight requests to reply.
func (r *Responder) Stop() error {
	err := r.sub.Unsubscribe()
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.wg.Wait()
	return err
}

// HandleExecuteRequest decodes a {language, source_code} request, runs it
// and returns the encoded result.
func HandleExecuteRequest(ctx context.Context, p code.Provider, data []byte) []byte {
	var req code.JobPayload
	if err := json.Unmarshal(data, &req); err != nil {
		resData, _ := json.Marshal(code.Result{Error: "invalid request: " + err.Error()})
		return resData
	}

	res := p.Execute(ctx, req.Language, req.SourceCode)
	resData, _ := json.Marshal(res)
	return resData
}

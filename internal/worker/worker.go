// Package worker runs the note parser off the caller's goroutine.
//
// Requests carry only the text to parse; responses carry the parsed notes
// or an error string, plus the elapsed milliseconds. A panic inside the
// parser becomes an error response instead of crashing the process.
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbomarketplace/log-nexus-sub000/internal/notes"
)

// ErrClosed is reported for submissions to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// Request is one parse job.
type Request struct {
	Text string `json:"text"`
}

// Response is the reply to one Request. Result is set only on success.
type Response struct {
	Result  *notes.ParsedNotes `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
	Ms      float64            `json:"ms"`
	Success bool               `json:"success"`
}

// ParseFunc is the parser a pool runs.
type ParseFunc func(text string) notes.ParsedNotes

// Handle parses one request on the calling goroutine.
func Handle(req Request) Response {
	return handleWith(notes.ParseNotesToStructured, req)
}

func handleWith(parse ParseFunc, req Request) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = Response{Error: fmt.Sprint(r)}
		}
		resp.Ms = elapsedMs(start)
	}()
	result := parse(req.Text)
	return Response{Result: &result, Success: true}
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan Response
}

// Pool is a fixed set of parser goroutines fed from one job channel.
type Pool struct {
	size   int
	parse  ParseFunc
	logger *zap.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithParser replaces the parser the workers run.
func WithParser(fn ParseFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.parse = fn
		}
	}
}

// New starts a pool of size workers. size < 1 means one worker.
func New(size int, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		size:   size,
		parse:  notes.ParseNotesToStructured,
		logger: zap.NewNop(),
		jobs:   make(chan job),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := j.ctx.Err(); err != nil {
			j.reply <- errorResponse(err)
			continue
		}
		resp := handleWith(p.parse, j.req)
		if !resp.Success {
			p.logger.Warn("parse failed", zap.String("error", resp.Error), zap.Float64("ms", resp.Ms))
		} else {
			p.logger.Debug("parsed notes", zap.Int("chars", len(j.req.Text)), zap.Float64("ms", resp.Ms))
		}
		j.reply <- resp
	}
}

// Submit queues req and returns a channel that receives exactly one
// Response. Concurrent submissions complete in no particular order.
func (p *Pool) Submit(ctx context.Context, req Request) <-chan Response {
	reply := make(chan Response, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		reply <- errorResponse(ErrClosed)
		return reply
	}
	select {
	case p.jobs <- job{ctx: ctx, req: req, reply: reply}:
	case <-ctx.Done():
		reply <- errorResponse(ctx.Err())
	}
	return reply
}

// Close stops accepting work, lets queued jobs finish and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// ParseAll parses texts with at most Size() in flight and returns the
// responses in input order. A parse failure is a response, not an error;
// the error is only set when ctx ends first.
func (p *Pool) ParseAll(ctx context.Context, texts []string) ([]Response, error) {
	out := make([]Response, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i, text := range texts {
		g.Go(func() error {
			resp := <-p.Submit(gctx, Request{Text: text})
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parsing batch: %w", err)
	}
	return out, nil
}

// maxLineBytes bounds one request line in Serve.
const maxLineBytes = 4 << 20

// Serve reads newline-delimited JSON requests from r and writes one JSON
// response line per request to w, in input order. A malformed line gets an
// error response. Serve returns when r is exhausted or ctx ends.
func (p *Pool) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errorResponse(fmt.Errorf("decoding request: %w", err))
		} else {
			resp = <-p.Submit(ctx, req)
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// Package traverse walks tree-shaped structures with bounded concurrency.
//
// A traversal starts from one input.
// Each input is "unfolded" into an output and zero or more child inputs,
// which are unfolded in turn.
// Outputs are delivered as a stream, in the order their unfolds complete.
package traverse

import (
	"context"
	"iter"
)

// Unfold expands one input into an output and its child inputs.
type Unfold[In, Out any] func(ctx context.Context, in In) (Out, []In, error)

// Stream is a pull-driven traversal.
// Work is scheduled only from within Next,
// so a consumer that stops calling Next stops the traversal
// (apart from unfolds already in flight).
//
// A Stream is not safe for concurrent use by multiple goroutines.
type Stream[In, Out any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	unfold Unfold[In, Out]
	max    int
	submit func(func()) error

	// Pending inputs. The front of the queue is the end of the slice,
	// so children pushed last are scheduled first.
	queue    []In
	inflight int
	results  chan result[In, Out]

	val  Out
	err  error
	done bool
}

type result[In, Out any] struct {
	out      Out
	children []In
	err      error
}

// Option configures a Stream.
type Option func(*options)

type options struct {
	submit func(func()) error
}

// WithSubmit runs each unfold by passing it to submit
// (such as the Submit method of an ants.Pool)
// instead of on a new goroutine.
func WithSubmit(submit func(func()) error) Option {
	return func(o *options) {
		o.submit = submit
	}
}

// NewStream starts a traversal at init
// with at most scheduledMax unfolds in flight at once.
// Values of scheduledMax below 1 are treated as 1.
func NewStream[In, Out any](ctx context.Context, scheduledMax int, init In, unfold Unfold[In, Out], opts ...Option) *Stream[In, Out] {
	if scheduledMax < 1 {
		scheduledMax = 1
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Stream[In, Out]{
		ctx:    ctx,
		cancel: cancel,
		unfold: unfold,
		max:    scheduledMax,
		submit: o.submit,
		queue:  []In{init},

		// Every in-flight unfold can deposit its result without blocking,
		// even after the consumer has gone away.
		results: make(chan result[In, Out], scheduledMax),
	}
}

// Next advances to the next output, blocking until one is available.
// It returns false when the traversal is complete or has failed;
// see Err.
func (s *Stream[In, Out]) Next() bool {
	if s.done {
		return false
	}
	for {
		for s.inflight < s.max && len(s.queue) > 0 {
			in := s.queue[len(s.queue)-1]
			s.queue = s.queue[:len(s.queue)-1]
			if err := s.start(in); err != nil {
				s.finish(err)
				return false
			}
		}

		if s.inflight == 0 {
			s.finish(nil)
			return false
		}

		select {
		case <-s.ctx.Done():
			s.finish(s.ctx.Err())
			return false

		case r := <-s.results:
			s.inflight--
			if r.err != nil {
				s.finish(r.err)
				return false
			}
			s.queue = append(s.queue, r.children...)
			s.val = r.out
			return true
		}
	}
}

func (s *Stream[In, Out]) start(in In) error {
	task := func() {
		out, children, err := s.unfold(s.ctx, in)
		s.results <- result[In, Out]{out: out, children: children, err: err}
	}
	if s.submit != nil {
		if err := s.submit(task); err != nil {
			return err
		}
	} else {
		go task()
	}
	s.inflight++
	return nil
}

func (s *Stream[In, Out]) finish(err error) {
	s.done = true
	s.err = err
	s.queue = nil
	s.cancel()
}

// Value is the output most recently produced by Next.
func (s *Stream[In, Out]) Value() Out {
	return s.val
}

// Err is the error, if any, that ended the traversal.
func (s *Stream[In, Out]) Err() error {
	return s.err
}

// Close abandons the traversal.
// Unfolds in flight see their context canceled
// and their results are discarded.
func (s *Stream[In, Out]) Close() {
	if !s.done {
		s.finish(nil)
	}
}

// All adapts the Stream to a range-over-func iterator.
// A failure is yielded as a final pair with a non-nil error.
// Breaking out of the loop closes the Stream.
func (s *Stream[In, Out]) All() iter.Seq2[Out, error] {
	return func(yield func(Out, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Value(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			var zero Out
			yield(zero, err)
		}
	}
}

// Collect runs a traversal to completion and returns all its outputs.
func Collect[In, Out any](ctx context.Context, scheduledMax int, init In, unfold Unfold[In, Out], opts ...Option) ([]Out, error) {
	s := NewStream(ctx, scheduledMax, init, unfold, opts...)
	defer s.Close()

	var result []Out
	for s.Next() {
		result = append(result, s.Value())
	}
	return result, s.Err()
}

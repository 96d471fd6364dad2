package middleware

import (
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
)

// Sequencer runs the updates of one user strictly in the order they were
// received while different users proceed in parallel. It must sit first in
// the chain of a bot created with Synchronous set, so the middleware itself
// is entered in arrival order.
type Sequencer struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
	wg     sync.WaitGroup

	onError func(error, tele.Context)
}

type userQueue struct {
	jobs []func()
}

// NewSequencer returns a Sequencer that reports handler errors to onError.
func NewSequencer(onError func(error, tele.Context)) *Sequencer {
	return &Sequencer{queues: make(map[int64]*userQueue), onError: onError}
}

// Middleware queues the update behind earlier updates of the same sender and
// returns without waiting for it. Updates without a sender or chat run inline.
func (s *Sequencer) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		key, ok := sequenceKey(c)
		if !ok {
			return next(c)
		}
		s.enqueue(key, func() {
			if err := next(c); err != nil && s.onError != nil {
				s.onError(err, c)
			}
		})
		return nil
	}
}

// Wait blocks until every queued update has been handled.
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

func sequenceKey(c tele.Context) (int64, bool) {
	if user := c.Sender(); user != nil {
		return user.ID, true
	}
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	return 0, false
}

func (s *Sequencer) enqueue(key int64, job func()) {
	s.mu.Lock()
	if q, busy := s.queues[key]; busy {
		q.jobs = append(q.jobs, job)
		s.mu.Unlock()
		return
	}
	q := &userQueue{}
	s.queues[key] = q
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(key, q, job)
}

// drain runs jobs for key until its queue is empty, then forgets the queue.
func (s *Sequencer) drain(key int64, q *userQueue, job func()) {
	defer s.wg.Done()
	for job != nil {
		s.run(key, job)

		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, key)
			job = nil
		} else {
			job = q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
		}
		s.mu.Unlock()
	}
}

func (s *Sequencer) run(key int64, job func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogEvent(logger.Background(), logger.TG, slog.LevelError, "tg.sequence_panic",
				slog.Int64("user_id", key),
				slog.Any("panic", r),
			)
		}
	}()
	job()
}

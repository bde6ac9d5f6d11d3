package scheduler

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/crossview/backend/internal/clock"
)

// Scheduler 串行执行所有事件：同一时刻只有一个事件在修改共享状态。
// 延迟任务到期后同样作为普通事件重新进入串行队列。
type Scheduler struct {
	mu    sync.Mutex
	clock clock.Clock
	log   *zap.Logger
}

// New 创建调度器。
func New(c clock.Clock, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{clock: c, log: log}
}

// Now returns the scheduler's clock reading.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Do runs fn as a single serialized event. A panicking event is logged and
// swallowed so it cannot wedge the lock for every other participant.
func (s *Scheduler) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler_event_panic", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
	}()
	fn()
}

// After arms a one-shot deferred event. There is no cancel handle: the
// callback must re-check state when it runs.
func (s *Scheduler) After(d time.Duration, name string, fn func()) {
	s.log.Debug("scheduler_task_armed", zap.String("task", name), zap.Duration("delay", d))
	s.clock.AfterFunc(d, func() {
		s.Do(fn)
	})
}

package clock

import "time"

// Clock 抽象当前时间与一次性定时回调，便于在测试中替换为可控时钟。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 是一次性回调的句柄。
type Timer interface {
	Stop() bool
}

// Real 基于 time 包的系统时钟。
type Real struct{}

// NewReal 返回系统时钟。
func NewReal() Real { return Real{} }

// Now returns the current time. The monotonic reading is kept so
// elapsed-time comparisons are immune to wall clock jumps.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

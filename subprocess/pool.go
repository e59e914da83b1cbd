// Package subprocess manages the bounded pools of ffmpeg/ffprobe child
// processes: admission control, spawn/kill helpers, bounded stderr capture,
// and watchdog timers. Grounded on the teacher's subprocess/logging.go pipe
// draining idiom and middleware's atomic in-flight counters for admission
// control, generalized into an explicit pool object per spec §9's redesign
// note ("replace module-level counters with atomic integers owned by a
// single pool object passed explicitly to handlers").
package subprocess

import (
	"sync/atomic"

	"github.com/capsoftware/cap-media-server/config"
	"github.com/capsoftware/cap-media-server/errors"
)

// Limiter bounds a single class of concurrent subprocesses with a fixed
// ceiling, per spec §4.1.
type Limiter struct {
	name    string
	ceiling int64
	inUse   int64
}

func NewLimiter(name string, ceiling int64) *Limiter {
	return &Limiter{name: name, ceiling: ceiling}
}

// TryAcquire atomically admits one more subprocess if under ceiling.
func (l *Limiter) TryAcquire() bool {
	for {
		cur := atomic.LoadInt64(&l.inUse)
		if cur >= l.ceiling {
			return false
		}
		if atomic.CompareAndSwapInt64(&l.inUse, cur, cur+1) {
			return true
		}
	}
}

// Release decrements the in-use count. Safe to call exactly once per
// successful TryAcquire, on any exit path (normal, crash, kill).
func (l *Limiter) Release() {
	atomic.AddInt64(&l.inUse, -1)
}

func (l *Limiter) InUse() int64    { return atomic.LoadInt64(&l.inUse) }
func (l *Limiter) Ceiling() int64  { return l.ceiling }
func (l *Limiter) Name() string    { return l.name }
func (l *Limiter) CanAccept() bool { return l.InUse() < l.Ceiling() }

// Pool groups the three subprocess classes from spec §4.1.
type Pool struct {
	Audio  *Limiter
	Probe  *Limiter
	Encode *Limiter
}

func NewPool() *Pool {
	return &Pool{
		Audio:  NewLimiter("audio", config.AudioPoolSize),
		Probe:  NewLimiter("probe", config.ProbePoolSize),
		Encode: NewLimiter("encode", config.EncodePoolSize),
	}
}

// Acquire admits one subprocess into the limiter or returns an EBUSY error,
// per spec §4.1 ("Attempts to spawn when at the ceiling fail with an EBUSY
// kind").
func Acquire(l *Limiter) (func(), error) {
	if !l.TryAcquire() {
		return nil, errors.New(errors.KindServerBusy, l.Name()+" pool at capacity")
	}
	return l.Release, nil
}

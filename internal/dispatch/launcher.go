package dispatch

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// Mode names the execution substrate units run on
type Mode string

const (
	// ModeThread runs every unit on its own dedicated OS thread
	ModeThread Mode = "thread"
	// ModeLightweight runs units as pooled goroutines
	ModeLightweight Mode = "lightweight"
)

// Launcher starts one unit of work concurrently with the caller.
// Launch must not wait for the unit to finish.
type Launcher interface {
	Launch(unit func()) error
	Mode() Mode
	Close()
}

// threadHeadroom is the room left above live units for the runtime's own
// threads (sysmon, GC workers, netpoll, cgo calls into sqlite).
const threadHeadroom = 1000

// ThreadLauncher pins each unit to an OS thread for its whole life. The
// thread is never unlocked, so the runtime retires it when the unit returns.
// The runtime thread limit is raised as live units approach it; exceeding it
// is a fatal error that recover cannot catch.
type ThreadLauncher struct {
	active atomic.Int64

	mu    sync.Mutex
	limit int
}

// NewThreadLauncher creates a thread-per-unit launcher
func NewThreadLauncher() *ThreadLauncher {
	return &ThreadLauncher{}
}

func (l *ThreadLauncher) Launch(unit func()) error {
	l.reserve(int(l.active.Add(1)))
	go func() {
		defer l.active.Add(-1)
		runtime.LockOSThread()
		unit()
	}()
	return nil
}

// reserve makes sure the thread limit has room for units pinned threads
func (l *ThreadLauncher) reserve(units int) {
	want := units + threadHeadroom

	l.mu.Lock()
	defer l.mu.Unlock()
	if want <= l.limit {
		return
	}

	// Read the current limit without ever dropping below the live thread count
	prev := debug.SetMaxThreads(math.MaxInt32)
	next := prev
	if want > prev {
		// Grow geometrically so a large run touches the runtime a few times only
		next = max(want, 2*prev)
	}
	debug.SetMaxThreads(next)
	l.limit = next
}

func (l *ThreadLauncher) Mode() Mode {
	return ModeThread
}

func (l *ThreadLauncher) Close() {}

// PoolLauncher submits units to an ants goroutine pool
type PoolLauncher struct {
	pool *ants.Pool
}

// NewPoolLauncher creates a lightweight launcher able to run size units at once
func NewPoolLauncher(size int) (*PoolLauncher, error) {
	pool, err := ants.NewPool(size, ants.WithPreAlloc(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create task pool: %w", err)
	}
	return &PoolLauncher{pool: pool}, nil
}

func (l *PoolLauncher) Launch(unit func()) error {
	return l.pool.Submit(unit)
}

func (l *PoolLauncher) Mode() Mode {
	return ModeLightweight
}

// Running returns the number of units currently executing
func (l *PoolLauncher) Running() int {
	return l.pool.Running()
}

func (l *PoolLauncher) Close() {
	l.pool.Release()
}

// LauncherFor picks the substrate for the lightweight flag
func LauncherFor(lightweight bool, count int) (Launcher, error) {
	if lightweight {
		return NewPoolLauncher(count)
	}
	return NewThreadLauncher(), nil
}

// Package sweeper periodically deletes expired session tokens.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nexus-webapi/nexus/internal/settings"
	"github.com/nexus-webapi/nexus/internal/store"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultInterval is the time between sweeps.
	DefaultInterval = time.Hour
	// DefaultLockKey is the redis key guarding a sweep across replicas.
	DefaultLockKey = "nexus:token-sweeper:lock"
	// DefaultLockTTL bounds how long a crashed replica can hold the lock.
	DefaultLockTTL = 5 * time.Minute

	sweepTimeout = time.Minute
)

// ErrLockHeld reports that another replica owns the sweep lock for this tick.
var ErrLockHeld = errors.New("sweeper: lock held by another instance")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// State is the sweeper lifecycle state.
type State int32

const (
	Idle State = iota
	Sweeping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sweeping:
		return "sweeping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Sweeper. Zero values fall back to defaults.
type Options struct {
	Interval time.Duration
	// Redis enables the cross-replica lock when set.
	Redis   redis.UniversalClient
	LockKey string
	LockTTL time.Duration
	// SettingsDB, when set, is re-read before each tick so a
	// TOKEN_SWEEP_INTERVAL_SECONDS row can change the interval at runtime.
	SettingsDB *gorm.DB
}

// Sweeper deletes tokens whose expiration is at or before the current time.
type Sweeper struct {
	tokens     store.TokenStore
	interval   time.Duration
	redis      redis.UniversalClient
	lockKey    string
	lockTTL    time.Duration
	settingsDB *gorm.DB
	now        func() time.Time

	state   atomic.Int32
	sweepMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Sweeper in the Idle state.
func New(tokens store.TokenStore, opts Options) *Sweeper {
	s := &Sweeper{
		tokens:     tokens,
		interval:   opts.Interval,
		redis:      opts.Redis,
		lockKey:    opts.LockKey,
		lockTTL:    opts.LockTTL,
		settingsDB: opts.SettingsDB,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.lockKey == "" {
		s.lockKey = DefaultLockKey
	}
	if s.lockTTL <= 0 {
		s.lockTTL = DefaultLockTTL
	}
	return s
}

// SetClock replaces the wall clock, for tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// State returns the current lifecycle state.
func (s *Sweeper) State() State {
	return State(s.state.Load())
}

// Start launches the sweep loop in a background goroutine. The first sweep
// runs immediately. Calling Start again is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil || s.State() == Stopped {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.run(runCtx)
	}(s.done)
	log.Infof("token sweeper started (interval=%s)", s.interval)
}

// Stop disarms the timer and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.state.Store(int32(Stopped))
}

// Run sweeps until ctx is cancelled and then returns nil. It is the blocking
// form of Start for callers that manage their own goroutines.
func (s *Sweeper) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.state.Store(int32(Stopped))
	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		timer := time.NewTimer(s.resolveInterval(ctx))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// tick runs one sweep detached from ctx so shutdown never interrupts a
// delete that has already started.
func (s *Sweeper) tick(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
	defer cancel()

	removed, err := s.SweepOnce(sweepCtx)
	switch {
	case errors.Is(err, ErrLockHeld):
		log.Debug("token sweeper: skipped, another instance holds the lock")
	case err != nil:
		log.WithError(err).Warn("token sweeper: sweep failed")
	case removed > 0:
		log.Infof("token sweeper: removed %d expired tokens", removed)
	default:
		log.Info("token sweeper: no expired tokens")
	}
}

// SweepOnce deletes every token with expiration <= now in one batch and
// returns the number removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	s.state.CompareAndSwap(int32(Idle), int32(Sweeping))
	defer s.state.CompareAndSwap(int32(Sweeping), int32(Idle))

	release, errLock := s.acquireLock(ctx)
	if errLock != nil {
		return 0, errLock
	}
	defer release()

	removed, errDelete := s.tokens.DeleteExpired(ctx, s.now())
	if errDelete != nil {
		return 0, fmt.Errorf("sweeper: delete expired: %w", errDelete)
	}
	return removed, nil
}

func (s *Sweeper) acquireLock(ctx context.Context) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}
	owner := uuid.NewString()
	acquired, errSet := s.redis.SetNX(ctx, s.lockKey, owner, s.lockTTL).Result()
	if errSet != nil {
		return nil, fmt.Errorf("sweeper: acquire lock: %w", errSet)
	}
	if !acquired {
		return nil, ErrLockHeld
	}
	return func() {
		if errRelease := releaseScript.Run(ctx, s.redis, []string{s.lockKey}, owner).Err(); errRelease != nil {
			log.WithError(errRelease).Warn("token sweeper: release lock failed")
		}
	}, nil
}

func (s *Sweeper) resolveInterval(ctx context.Context) time.Duration {
	if s.settingsDB != nil {
		if errRefresh := settings.Refresh(ctx, s.settingsDB); errRefresh != nil {
			log.WithError(errRefresh).Warn("token sweeper: refresh settings failed")
		}
	}
	if seconds, ok := settings.Int(settings.TokenSweepIntervalSecondsKey); ok && seconds >= settings.MinTokenSweepIntervalSeconds {
		return time.Duration(seconds) * time.Second
	}
	return s.interval
}

package cartstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopmate/storefront-backend/pkg/config"
	"github.com/shopmate/storefront-backend/pkg/logger"
	"github.com/shopmate/storefront-backend/pkg/metrics"

	pkgerrors "github.com/shopmate/storefront-backend/pkg/errors"
)

const (
	defaultRemoteTimeout      = 10 * time.Second
	defaultMergeRetryAttempts = 3
	defaultMergeRetryBackoff  = 200 * time.Millisecond
)

// OptionsFromConfig seeds the tunable knobs from config. Mode, Remote
// and Persistence are filled in by the caller.
func OptionsFromConfig(cfg config.CartConfig) Options {
	return Options{
		RemoteTimeout:      cfg.RemoteTimeout,
		MergeRetryAttempts: cfg.MergeRetryAttempts,
		MergeRetryBackoff:  cfg.MergeRetryBackoff,
	}
}

// Options configures a Store.
type Options struct {
	Mode        Mode
	Remote      RemoteCart
	Persistence Persistence
	Logger      *logger.Logger
	Metrics     *metrics.CartMetrics

	// RemoteTimeout caps each remote round-trip.
	RemoteTimeout time.Duration
	// MergeRetryAttempts bounds per-line retries during the merge rebuild.
	MergeRetryAttempts uint64
	MergeRetryBackoff  time.Duration
}

// Store is the single source of truth for one session's cart. It owns
// the line map exclusively; consumers mutate only through its
// operations and read through the derived getters.
type Store struct {
	// opMu serializes mutations end to end, including remote
	// round-trips, so two in-flight authenticated mutations cannot
	// race on the authoritative re-fetch.
	opMu sync.Mutex
	// mu guards the fields below.
	mu       sync.Mutex
	lines    map[string]Line
	mode     Mode
	strategy modeStrategy
	syncing  bool
	subs     map[int]func()
	nextSub  int

	remote  RemoteCart
	persist Persistence
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	remoteTimeout time.Duration
	retryAttempts uint64
	retryBackoff  time.Duration
}

// New constructs a Store in the given mode. Guest stores require a
// persistence layer; authenticated stores require a remote cart.
func New(opts Options) (*Store, error) {
	if opts.Mode == "" {
		opts.Mode = ModeGuest
	}
	switch opts.Mode {
	case ModeGuest:
		if opts.Persistence == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest cart requires a persistence layer")
		}
	case ModeAuthenticated:
		if opts.Remote == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "authenticated cart requires a remote cart service")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown cart mode")
	}

	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaultRemoteTimeout
	}
	if opts.MergeRetryAttempts == 0 {
		opts.MergeRetryAttempts = defaultMergeRetryAttempts
	}
	if opts.MergeRetryBackoff <= 0 {
		opts.MergeRetryBackoff = defaultMergeRetryBackoff
	}

	s := &Store{
		lines:         map[string]Line{},
		mode:          opts.Mode,
		subs:          map[int]func(){},
		remote:        opts.Remote,
		persist:       opts.Persistence,
		logg:          opts.Logger,
		metrics:       opts.Metrics,
		remoteTimeout: opts.RemoteTimeout,
		retryAttempts: opts.MergeRetryAttempts,
		retryBackoff:  opts.MergeRetryBackoff,
	}
	s.strategy = strategyFor(opts.Mode)
	return s, nil
}

// Hydrate loads the persisted guest cart, if any. A missing cart is not
// an error; the store simply starts empty.
func (s *Store) Hydrate(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	lines, err := s.persist.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load persisted cart")
	}
	if lines == nil {
		return nil
	}
	s.mu.Lock()
	s.lines = copyLines(lines)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Mode returns the current ownership mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Syncing reports whether a remote round-trip is in flight. Consumers
// use it to disable controls while a mutation is pending.
func (s *Store) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Subscribe registers a change listener fired after every committed
// local state change. The returned func cancels the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AddItem merges quantity into the line for the product, creating the
// line when absent. Quantity must be positive.
func (s *Store) AddItem(ctx context.Context, product ProductSnapshot, quantity int) error {
	if product.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.currentStrategy().addItem(ctx, s, product, quantity)
	s.record(ctx, "add_item", err)
	return err
}

// UpdateQuantity applies a signed delta to an existing line. An absent
// product id is a silent no-op; a resulting quantity of zero or less
// deletes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, delta int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.currentStrategy().updateQuantity(ctx, s, productID, delta)
	s.record(ctx, "update_quantity", err)
	return err
}

// RemoveItem deletes the line unconditionally when present.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.currentStrategy().removeItem(ctx, s, productID)
	s.record(ctx, "remove_item", err)
	return err
}

// Clear empties the cart. Clearing an already-empty cart is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.currentStrategy().clear(ctx, s)
	s.record(ctx, "clear", err)
	return err
}

// FetchServerCart replaces local state with the remote cart's
// contents. On failure the prior state is left untouched.
func (s *Store) FetchServerCart(ctx context.Context) error {
	if s.Mode() != ModeAuthenticated {
		return pkgerrors.New(pkgerrors.CodeForbidden, "server cart is only available when authenticated")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.refreshFromRemote(ctx)
	s.record(ctx, "fetch", err)
	return err
}

// Login transitions a guest store to authenticated mode and reconciles
// the guest cart into the server cart. The merge runs once; calling
// Login on an already-authenticated store is a no-op.
func (s *Store) Login(ctx context.Context, remote RemoteCart) error {
	s.mu.Lock()
	if s.mode == ModeAuthenticated {
		s.mu.Unlock()
		return nil
	}
	if remote == nil {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, "remote cart service is required at login")
	}
	s.mode = ModeAuthenticated
	s.strategy = strategyFor(ModeAuthenticated)
	s.remote = remote
	s.mu.Unlock()

	return s.MergeWithServerCart(ctx)
}

// MergeWithServerCart folds the local (guest) cart into the server
// cart: shared products sum quantities, everything else passes through.
// The merged map becomes local state immediately; the server is then
// rebuilt via clear-then-re-add with bounded per-line retries, and a
// final fetch confirms the result.
func (s *Store) MergeWithServerCart(ctx context.Context) error {
	if s.Mode() != ModeAuthenticated {
		return pkgerrors.New(pkgerrors.CodeForbidden, "merge requires an authenticated cart")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	err := s.mergeLocked(ctx)
	s.record(ctx, "merge", err)
	return err
}

func (s *Store) mergeLocked(ctx context.Context) error {
	s.setSyncing(true)
	defer s.setSyncing(false)

	started := time.Now()
	serverLines, err := s.remoteGet(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read server cart for merge")
	}

	merged := make(map[string]Line, len(serverLines))
	for _, line := range serverLines {
		merged[line.ProductID] = line
	}

	s.mu.Lock()
	for id, local := range s.lines {
		if existing, ok := merged[id]; ok {
			existing.Quantity += local.Quantity
			merged[id] = existing
		} else {
			merged[id] = local
		}
	}
	s.lines = copyLines(merged)
	s.mu.Unlock()
	s.notify()

	if err := s.rebuildRemote(ctx, merged); err != nil {
		return err
	}

	// The merge consumes the guest snapshot; a store re-hydrated from
	// the same storage must not merge the same lines again.
	if s.persist != nil {
		if err := s.persist.Save(ctx, map[string]Line{}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest storage after merge")
		}
	}

	s.metrics.ObserveSync("merge", time.Since(started))
	return s.refreshFromRemote(ctx)
}

// rebuildRemote re-creates the full merged cart server-side. The
// remote has no native merge endpoint, so the sequence is a clear
// followed by one add per line. Each add retries with exponential
// backoff; lines that still fail are reported together while the
// optimistic local state stays in place.
func (s *Store) rebuildRemote(ctx context.Context, merged map[string]Line) error {
	callCtx, cancel := s.remoteContext(ctx)
	err := s.remote.Clear(callCtx)
	cancel()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear server cart for rebuild")
	}

	var rebuildErr error
	for _, line := range sortedLines(merged) {
		backoff := retry.WithMaxRetries(s.retryAttempts, retry.NewExponential(s.retryBackoff))
		attempt := func(ctx context.Context) error {
			callCtx, cancel := s.remoteContext(ctx)
			defer cancel()
			if err := s.remote.AddItem(callCtx, line.ProductID, line.Quantity); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		}
		if err := retry.Do(ctx, backoff, attempt); err != nil {
			rebuildErr = appendErr(rebuildErr, line.ProductID, err)
		}
	}
	if rebuildErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, rebuildErr, "rebuild server cart")
	}
	return nil
}

// refreshFromRemote replaces local state with the authoritative server
// cart. Fail-soft: on error the prior local snapshot is untouched.
func (s *Store) refreshFromRemote(ctx context.Context) error {
	started := time.Now()
	serverLines, err := s.remoteGet(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch server cart")
	}
	s.metrics.ObserveSync("fetch", time.Since(started))

	next := make(map[string]Line, len(serverLines))
	for _, line := range serverLines {
		if line.Quantity < 1 {
			continue
		}
		next[line.ProductID] = line
	}

	s.mu.Lock()
	s.lines = next
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) remoteGet(ctx context.Context) ([]Line, error) {
	callCtx, cancel := s.remoteContext(ctx)
	defer cancel()
	return s.remote.Get(callCtx)
}

func (s *Store) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.remoteTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.remoteTimeout)
}

// TotalItems sums the quantities across all lines.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity
	}
	return total
}

// TotalUniqueItems counts distinct product ids.
func (s *Store) TotalUniqueItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// TotalPriceCents sums quantity times effective price per line.
func (s *Store) TotalPriceCents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, line := range s.lines {
		total += line.Quantity * line.Product.EffectivePriceCents()
	}
	return total
}

// Lines returns a copy of the cart lines ordered by product id for
// stable display. Mutating the result does not affect the store.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	lines := copyLines(s.lines)
	s.mu.Unlock()
	return sortedLines(lines)
}

// Quantity returns the quantity for a product id, zero when absent.
func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[productID].Quantity
}

func (s *Store) currentStrategy() modeStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

func (s *Store) setSyncing(v bool) {
	s.mu.Lock()
	s.syncing = v
	s.mu.Unlock()
}

// notify invokes subscribers outside the lock so a listener reading
// back through the store cannot deadlock.
func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) record(ctx context.Context, operation string, err error) {
	mode := string(s.Mode())
	s.metrics.IncOperation(operation, mode)
	if err != nil {
		s.metrics.IncFailure(operation, mode)
		if s.logg != nil {
			s.logg.Error(s.logg.WithCartMode(ctx, mode), "cart."+operation+" failed", err)
		}
	}
}

func copyLines(src map[string]Line) map[string]Line {
	dst := make(map[string]Line, len(src))
	for id, line := range src {
		dst[id] = line
	}
	return dst
}

func sortedLines(src map[string]Line) []Line {
	out := make([]Line, 0, len(src))
	for _, line := range src {
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

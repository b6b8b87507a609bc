package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/syncagent"
)

const (
	cycleKeyConstant                 = "cycle"
	defaultIntervalConstant          = 10 * time.Second
	cycleCompletedMessageConstant    = "Poll cycle completed"
	cycleFailedMessageConstant       = "Poll cycle failed"
	visibilityFailedMessageConstant  = "Failed to compute visible changes; assuming changed"
	pollerStartedMessageConstant     = "Poller started"
	pollerStoppedMessageConstant     = "Poller stopped"
	reachableFieldConstant           = "reachable"
	changedFieldConstant             = "changed"
	cyclesFieldConstant              = "cycles"
	intervalFieldConstant            = "interval"
	collectionFieldConstant          = "collection"
	refresherMissingMessageConstant  = "mirror refresher not configured"
	visibilityMissingMessageConstant = "visibility checker not configured"
	flagsMissingMessageConstant      = "remote change flags not configured"
)

// ErrRefresherNotConfigured indicates the refresher dependency was missing.
var ErrRefresherNotConfigured = errors.New(refresherMissingMessageConstant)

// ErrVisibilityNotConfigured indicates the visibility checker dependency was missing.
var ErrVisibilityNotConfigured = errors.New(visibilityMissingMessageConstant)

// ErrFlagsNotConfigured indicates the remote change flags dependency was missing.
var ErrFlagsNotConfigured = errors.New(flagsMissingMessageConstant)

// Refresher pulls the remote and refreshes the mirrors.
type Refresher interface {
	PullAndRefreshMirror(executionContext context.Context, collections []catalog.Collection) (syncagent.RefreshResult, error)
}

// VisibilityChecker reports whether a collection has changes the user has not hidden.
type VisibilityChecker interface {
	HasVisibleChanges(collection catalog.Collection) (bool, error)
}

// Observer receives every new status.
type Observer func(status Status)

// Status is a snapshot of the poller's view of the remote and the collections.
type Status struct {
	Reachable      bool
	RemoteChanged  map[catalog.Collection]bool
	VisibleChanges map[catalog.Collection]bool
	LastCycle      time.Time
	Cycles         int
	LastError      error
}

func (status Status) clone() Status {
	cloned := status
	cloned.RemoteChanged = cloneFlags(status.RemoteChanged)
	cloned.VisibleChanges = cloneFlags(status.VisibleChanges)
	return cloned
}

// Dependencies enumerates the collaborators of a Poller.
type Dependencies struct {
	Logger     *zap.Logger
	Refresher  Refresher
	Visibility VisibilityChecker
	Flags      *RemoteChangeFlags
	Clock      func() time.Time
}

// Options configures a Poller.
type Options struct {
	Interval    time.Duration
	Collections []catalog.Collection
}

// Poller periodically refreshes the mirrors. Manual refreshes share any cycle
// already in flight.
type Poller struct {
	logger      *zap.Logger
	refresher   Refresher
	visibility  VisibilityChecker
	flags       *RemoteChangeFlags
	clock       func() time.Time
	interval    time.Duration
	collections []catalog.Collection

	cycles singleflight.Group

	statusMutex sync.RWMutex
	status      Status

	observersMutex sync.RWMutex
	observers      map[int]Observer
	nextObserverID int

	lifecycleMutex sync.Mutex
	cancel         context.CancelFunc
	waitGroup      sync.WaitGroup
}

// New validates dependencies and constructs an idle Poller.
func New(dependencies Dependencies, options Options) (*Poller, error) {
	if dependencies.Refresher == nil {
		return nil, ErrRefresherNotConfigured
	}
	if dependencies.Visibility == nil {
		return nil, ErrVisibilityNotConfigured
	}
	if dependencies.Flags == nil {
		return nil, ErrFlagsNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := dependencies.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := options.Interval
	if interval <= 0 {
		interval = defaultIntervalConstant
	}
	collections := options.Collections
	if len(collections) == 0 {
		collections = catalog.AllCollections()
	}

	return &Poller{
		logger:      logger,
		refresher:   dependencies.Refresher,
		visibility:  dependencies.Visibility,
		flags:       dependencies.Flags,
		clock:       clock,
		interval:    interval,
		collections: append([]catalog.Collection(nil), collections...),
		status: Status{
			RemoteChanged:  make(map[catalog.Collection]bool),
			VisibleChanges: make(map[catalog.Collection]bool),
		},
		observers: make(map[int]Observer),
	}, nil
}

// Start launches the background loop: one cycle immediately, then one per
// interval until ctx is cancelled or Stop is called. Starting again replaces
// the running loop.
func (poller *Poller) Start(executionContext context.Context) {
	poller.Stop()

	poller.lifecycleMutex.Lock()
	loopContext, cancel := context.WithCancel(executionContext)
	poller.cancel = cancel
	poller.waitGroup.Add(1)
	poller.lifecycleMutex.Unlock()

	poller.logger.Info(pollerStartedMessageConstant, zap.Duration(intervalFieldConstant, poller.interval))
	go func() {
		defer poller.waitGroup.Done()
		ticker := time.NewTicker(poller.interval)
		defer ticker.Stop()

		poller.runScheduledCycle(loopContext)
		for {
			select {
			case <-loopContext.Done():
				poller.logger.Info(pollerStoppedMessageConstant)
				return
			case <-ticker.C:
				poller.runScheduledCycle(loopContext)
			}
		}
	}()
}

// Stop cancels the background loop and waits for it to exit. It is a no-op
// when the loop is not running.
func (poller *Poller) Stop() {
	poller.lifecycleMutex.Lock()
	cancel := poller.cancel
	poller.cancel = nil
	poller.lifecycleMutex.Unlock()

	if cancel != nil {
		cancel()
	}
	poller.waitGroup.Wait()
}

// RefreshNow runs one cycle, or waits for the cycle already in flight, and
// returns the resulting status. An unreachable remote is reported through
// Status.Reachable, not as an error. The cycle is shared, so it outlives a
// caller whose context ends first; that caller gets the current status and
// the context error.
func (poller *Poller) RefreshNow(executionContext context.Context) (Status, error) {
	cycleContext := context.WithoutCancel(executionContext)
	results := poller.cycles.DoChan(cycleKeyConstant, func() (any, error) {
		return poller.runCycle(cycleContext)
	})
	select {
	case result := <-results:
		status, _ := result.Val.(Status)
		return status.clone(), result.Err
	case <-executionContext.Done():
		return poller.Status(), executionContext.Err()
	}
}

// Status returns the latest status. Remote change flags are read live.
func (poller *Poller) Status() Status {
	poller.statusMutex.RLock()
	status := poller.status.clone()
	poller.statusMutex.RUnlock()
	status.RemoteChanged = poller.flags.snapshot(poller.collections)
	return status
}

// Subscribe registers observer and returns a function that removes it.
func (poller *Poller) Subscribe(observer Observer) func() {
	poller.observersMutex.Lock()
	defer poller.observersMutex.Unlock()
	observerID := poller.nextObserverID
	poller.nextObserverID++
	poller.observers[observerID] = observer
	return func() {
		poller.observersMutex.Lock()
		defer poller.observersMutex.Unlock()
		delete(poller.observers, observerID)
	}
}

// LocalSnapshotsChanged recomputes the visible change indicators of
// collections without pulling and notifies observers.
func (poller *Poller) LocalSnapshotsChanged(collections []catalog.Collection) {
	visibleChanges := poller.computeVisibleChanges(collections)
	poller.statusMutex.Lock()
	for collection, visible := range visibleChanges {
		poller.status.VisibleChanges[collection] = visible
	}
	poller.statusMutex.Unlock()
	poller.notify(poller.Status())
}

func (poller *Poller) runScheduledCycle(executionContext context.Context) {
	if _, cycleError := poller.RefreshNow(executionContext); cycleError != nil && executionContext.Err() == nil {
		poller.logger.Warn(cycleFailedMessageConstant, zap.Error(cycleError))
	}
}

func (poller *Poller) runCycle(executionContext context.Context) (Status, error) {
	refreshResult, refreshError := poller.refresher.PullAndRefreshMirror(executionContext, poller.collections)
	if len(refreshResult.Changed) > 0 {
		poller.flags.RecordRemoteChanges(refreshResult.Changed)
	}
	visibleChanges := poller.computeVisibleChanges(poller.collections)

	poller.statusMutex.Lock()
	poller.status.Reachable = refreshResult.Reachable
	poller.status.VisibleChanges = visibleChanges
	poller.status.LastCycle = poller.clock()
	poller.status.Cycles++
	poller.status.LastError = refreshError
	cycles := poller.status.Cycles
	poller.statusMutex.Unlock()

	status := poller.Status()
	poller.logger.Debug(
		cycleCompletedMessageConstant,
		zap.Bool(reachableFieldConstant, refreshResult.Reachable),
		zap.Strings(changedFieldConstant, collectionNames(refreshResult.Changed)),
		zap.Int(cyclesFieldConstant, cycles),
	)
	poller.notify(status)
	return status, refreshError
}

func (poller *Poller) computeVisibleChanges(collections []catalog.Collection) map[catalog.Collection]bool {
	visibleChanges := make(map[catalog.Collection]bool, len(collections))
	for _, collection := range collections {
		visible, visibilityError := poller.visibility.HasVisibleChanges(collection)
		if visibilityError != nil {
			poller.logger.Warn(visibilityFailedMessageConstant, zap.String(collectionFieldConstant, collection.String()), zap.Error(visibilityError))
			visible = true
		}
		visibleChanges[collection] = visible
	}
	return visibleChanges
}

func (poller *Poller) notify(status Status) {
	poller.observersMutex.RLock()
	observers := make([]Observer, 0, len(poller.observers))
	for _, observer := range poller.observers {
		observers = append(observers, observer)
	}
	poller.observersMutex.RUnlock()

	for _, observer := range observers {
		observer(status.clone())
	}
}

func cloneFlags(flags map[catalog.Collection]bool) map[catalog.Collection]bool {
	cloned := make(map[catalog.Collection]bool, len(flags))
	for collection, flag := range flags {
		cloned[collection] = flag
	}
	return cloned
}

func collectionNames(collections []catalog.Collection) []string {
	names := make([]string, 0, len(collections))
	for _, collection := range collections {
		names = append(names, collection.String())
	}
	return names
}

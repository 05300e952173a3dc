package progress

import (
	"sync"
	"time"

	"github.com/temirov/treediff/internal/shared"
)

const (
	// DefaultSubscriberBuffer is the per-subscriber queue capacity used when none is configured.
	DefaultSubscriberBuffer = 64

	maximumPercentageConstant = 100
	cancelledPrefixConstant   = "cancelled: "
	completedMessageConstant  = "completed"
)

// Snapshot is the observable state of a run at one moment.
type Snapshot struct {
	RunID       string    `yaml:"run_id" json:"run_id"`
	Stage       Stage     `yaml:"stage" json:"stage"`
	Percentage  float64   `yaml:"percentage" json:"percentage"`
	Message     string    `yaml:"message" json:"message"`
	CurrentItem string    `yaml:"current_item,omitempty" json:"current_item,omitempty"`
	CurrentStep int       `yaml:"current_step" json:"current_step"`
	TotalSteps  int       `yaml:"total_steps" json:"total_steps"`
	Cancelled   bool      `yaml:"cancelled,omitempty" json:"cancelled,omitempty"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// Update carries a producer's report. An empty Stage keeps the current stage.
type Update struct {
	Stage       Stage
	Percentage  float64
	Message     string
	CurrentItem string
	CurrentStep int
	TotalSteps  int
}

// Options configures a Publisher.
type Options struct {
	SubscriberBuffer int
	Clock            shared.Clock
}

// Publisher fans snapshots of one run out to subscribers.
type Publisher struct {
	mutex       sync.Mutex
	current     Snapshot
	subscribers map[*Subscription]struct{}
	bufferSize  int
	clock       shared.Clock
}

// NewPublisher constructs a publisher for the run, starting in StageIdle.
func NewPublisher(runID string, options Options) *Publisher {
	bufferSize := options.SubscriberBuffer
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBuffer
	}
	clock := options.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Publisher{
		current:     Snapshot{RunID: runID, Stage: StageIdle, UpdatedAt: clock.Now()},
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		clock:       clock,
	}
}

// Snapshot returns the latest snapshot.
func (publisher *Publisher) Snapshot() Snapshot {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return publisher.current
}

// Done reports whether the run reached a terminal stage.
func (publisher *Publisher) Done() bool {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return publisher.current.Stage.Terminal()
}

// Update applies a report and publishes the resulting snapshot.
// Percentages never decrease and never exceed 100, stage regressions and unknown stages
// are ignored, and nothing is accepted after a terminal stage. It reports whether the
// update was published.
func (publisher *Publisher) Update(update Update) bool {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()

	if publisher.current.Stage.Terminal() {
		return false
	}

	next := publisher.current
	if len(update.Stage) > 0 {
		if !update.Stage.Known() || update.Stage.precedes(next.Stage) {
			return false
		}
		next.Stage = update.Stage
	}
	next.Percentage = clampPercentage(next.Percentage, update.Percentage)
	next.Message = update.Message
	next.CurrentItem = update.CurrentItem
	if update.TotalSteps > 0 || update.CurrentStep > 0 {
		next.CurrentStep = update.CurrentStep
		next.TotalSteps = update.TotalSteps
	}
	if next.Stage == StageCompleted {
		next.Percentage = maximumPercentageConstant
	}
	next.UpdatedAt = publisher.clock.Now()

	publisher.publishLocked(next)
	return true
}

// Complete moves the run to StageCompleted at 100 percent.
func (publisher *Publisher) Complete(message string) bool {
	if len(message) == 0 {
		message = completedMessageConstant
	}
	return publisher.Update(Update{Stage: StageCompleted, Percentage: maximumPercentageConstant, Message: message})
}

// Fail moves the run to StageError with the failure as its message.
func (publisher *Publisher) Fail(failure error) bool {
	return publisher.terminate(failure, false)
}

// Cancel moves the run to StageError and marks the snapshot as cancelled.
// The caller decides what counts as cancellation.
func (publisher *Publisher) Cancel(cause error) bool {
	return publisher.terminate(cause, true)
}

func (publisher *Publisher) terminate(failure error, cancelled bool) bool {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()

	if publisher.current.Stage.Terminal() {
		return false
	}

	next := publisher.current
	next.Stage = StageError
	next.CurrentItem = ""
	if failure != nil {
		next.Message = failure.Error()
	}
	if cancelled {
		next.Cancelled = true
		next.Message = cancelledPrefixConstant + next.Message
	}
	next.UpdatedAt = publisher.clock.Now()

	publisher.publishLocked(next)
	return true
}

// Subscribe attaches an observer. The current snapshot is queued immediately; the
// subscription closes after the terminal snapshot is queued.
func (publisher *Publisher) Subscribe() *Subscription {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()

	subscription := newSubscription(publisher, publisher.bufferSize)
	subscription.offer(publisher.current)
	if publisher.current.Stage.Terminal() {
		subscription.closeLocked()
		return subscription
	}
	publisher.subscribers[subscription] = struct{}{}
	return subscription
}

// SubscriberCount reports the number of attached subscriptions.
func (publisher *Publisher) SubscriberCount() int {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	return len(publisher.subscribers)
}

func (publisher *Publisher) publishLocked(next Snapshot) {
	publisher.current = next
	for subscription := range publisher.subscribers {
		subscription.offer(next)
		if next.Stage.Terminal() {
			subscription.closeLocked()
			delete(publisher.subscribers, subscription)
		}
	}
}

func (publisher *Publisher) detach(subscription *Subscription) {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if _, attached := publisher.subscribers[subscription]; attached {
		delete(publisher.subscribers, subscription)
	}
	subscription.closeLocked()
}

func clampPercentage(previous float64, proposed float64) float64 {
	if proposed > maximumPercentageConstant {
		proposed = maximumPercentageConstant
	}
	if proposed < previous {
		return previous
	}
	return proposed
}

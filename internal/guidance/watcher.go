package guidance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/gateway"
	"github.com/abhisek/prepdeck/internal/timer"
)

// RecordType is the gateway record type of guidance state.
const RecordType = "guidance"

// ErrUnknownTip is returned when dismissing a tip id that does not exist.
var ErrUnknownTip = errors.New("unknown tip")

// InputFunc supplies the advisor input at check time.
type InputFunc func() Input

// Watcher periodically evaluates guidance for one user and queues tips
// until they are dismissed.
type Watcher struct {
	userID  string
	advisor *Advisor
	gw      gateway.Gateway
	input   InputFunc
	log     logrus.FieldLogger

	mu      sync.Mutex
	state   State
	pending []Tip
	handle  *timer.Handle
	wakeup  *timer.Handle
}

// NewWatcher returns a watcher. Call Load before Check to pick up
// previously dismissed tips.
func NewWatcher(userID string, advisor *Advisor, gw gateway.Gateway, input InputFunc, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		userID:  userID,
		advisor: advisor,
		gw:      gw,
		input:   input,
		log:     log.WithField("user_id", userID),
		state:   State{LastShown: map[TipID]time.Time{}},
	}
}

// Load reads the persisted guidance state. A missing record is not an error.
func (w *Watcher) Load(ctx context.Context) error {
	st, err := gateway.Load[State](ctx, w.gw, w.userID, RecordType)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load guidance: %w", err)
	}
	if st.LastShown == nil {
		st.LastShown = map[TipID]time.Time{}
	}

	w.mu.Lock()
	w.state = st
	w.mu.Unlock()
	return nil
}

// Check re-evaluates the advisor and refreshes the queue. Tips whose
// condition no longer holds are dropped; a queued review nudge stays while
// cards are still due. It returns the tips added by this check.
func (w *Watcher) Check(ctx context.Context) []Tip {
	in := w.input()

	w.mu.Lock()
	tips := w.advisor.Evaluate(in, w.state)
	var added []Tip
	for _, t := range tips {
		if !containsTip(w.pending, t.ID) {
			w.state.LastShown[t.ID] = in.Now
			added = append(added, t)
		}
	}
	for _, p := range w.pending {
		if p.ID == TipReviewDue && in.Deck.Due > 0 && !containsTip(tips, p.ID) {
			tips = append(tips, p)
		}
	}
	slices.SortStableFunc(tips, func(a, b Tip) int { return a.Priority - b.Priority })
	w.pending = tips
	st := w.cloneState()
	w.mu.Unlock()

	if len(added) > 0 {
		w.save(ctx, st)
	}
	return added
}

// Pending returns queued tips in priority order.
func (w *Watcher) Pending() []Tip {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.pending)
}

// Dismiss removes a tip from the queue and never shows it again.
func (w *Watcher) Dismiss(ctx context.Context, id TipID) error {
	if !knownTip(id) {
		return fmt.Errorf("%w: %s", ErrUnknownTip, id)
	}

	w.mu.Lock()
	w.pending = slices.DeleteFunc(w.pending, func(t Tip) bool { return t.ID == id })
	if !w.state.IsDismissed(id) {
		w.state.Dismissed = append(w.state.Dismissed, id)
	}
	st := w.cloneState()
	w.mu.Unlock()

	if err := gateway.Save(ctx, w.gw, w.userID, RecordType, st); err != nil {
		return fmt.Errorf("save guidance: %w", err)
	}
	return nil
}

// Start runs Check every interval on svc until Stop.
func (w *Watcher) Start(svc *timer.Service, interval time.Duration) error {
	h, err := svc.Every(interval, func() { w.Check(context.Background()) })
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev := w.handle
	w.handle = h
	w.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	return nil
}

// CheckAfter runs a single Check after d, replacing any earlier pending
// one. It is used to nudge the user when cards come due.
func (w *Watcher) CheckAfter(svc *timer.Service, d time.Duration) error {
	h, err := svc.After(d, func() { w.Check(context.Background()) })
	if err != nil {
		return err
	}

	w.mu.Lock()
	prev := w.wakeup
	w.wakeup = h
	w.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	return nil
}

// Stop cancels periodic and pending one-shot checks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	handles := []*timer.Handle{w.handle, w.wakeup}
	w.handle, w.wakeup = nil, nil
	w.mu.Unlock()

	for _, h := range handles {
		if h != nil {
			h.Cancel()
		}
	}
}

func (w *Watcher) save(ctx context.Context, st State) {
	if err := gateway.Save(ctx, w.gw, w.userID, RecordType, st); err != nil {
		w.log.WithError(err).Warn("save guidance state")
	}
}

// cloneState copies the state; callers hold w.mu.
func (w *Watcher) cloneState() State {
	st := State{
		Dismissed: slices.Clone(w.state.Dismissed),
		LastShown: make(map[TipID]time.Time, len(w.state.LastShown)),
	}
	for k, v := range w.state.LastShown {
		st.LastShown[k] = v
	}
	return st
}

func containsTip(tips []Tip, id TipID) bool {
	return slices.ContainsFunc(tips, func(t Tip) bool { return t.ID == id })
}

func knownTip(id TipID) bool {
	switch id {
	case TipWelcome, TipFirstQuestion, TipReviewDue, TipStreakAtRisk, TipTryFlashcards:
		return true
	}
	return false
}

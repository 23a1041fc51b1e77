package message

import (
	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
)

// OverallProgressQueue is the producer side of the overall-progress family.
type OverallProgressQueue struct {
	Queue
	reg    curriculum.Registry
	sender model.ImmutableID
}

// NewOverallProgressQueue returns an empty queue for sender.
func NewOverallProgressQueue(reg curriculum.Registry, seq *clock.Sequence, sender model.ImmutableID) *OverallProgressQueue {
	return &OverallProgressQueue{Queue: newQueue(seq), reg: reg, sender: sender}
}

func (q *OverallProgressQueue) MarkLessonComplete(id model.ImmutableID) error {
	return q.lesson(MethodMarkLessonComplete, id)
}

func (q *OverallProgressQueue) MarkLessonIncomplete(id model.ImmutableID) error {
	return q.lesson(MethodMarkLessonIncomplete, id)
}

func (q *OverallProgressQueue) MarkDomainComplete(id model.ImmutableID) error {
	return q.domain(MethodMarkDomainComplete, id)
}

func (q *OverallProgressQueue) MarkDomainIncomplete(id model.ImmutableID) error {
	return q.domain(MethodMarkDomainIncomplete, id)
}

func (q *OverallProgressQueue) lesson(method string, id model.ImmutableID) error {
	if err := manager.ValidateLesson(q.reg, method, id); err != nil {
		return err
	}
	q.enqueue(method, model.NewObject(model.O("lessonId", model.Int(id))))
	return nil
}

func (q *OverallProgressQueue) domain(method string, id model.ImmutableID) error {
	if err := manager.ValidateDomain(q.reg, method, id); err != nil {
		return err
	}
	q.enqueue(method, model.NewObject(model.O("domainId", model.Int(id))))
	return nil
}

func (q *OverallProgressQueue) enqueue(method string, args model.Object) {
	q.push(model.Message{Family: model.FamilyOverallProgress, ComponentID: q.sender, Method: method, Args: args})
}

// NavigationQueue is the producer side of the navigation family.
type NavigationQueue struct {
	Queue
	reg    curriculum.Registry
	sender model.ImmutableID
}

// NewNavigationQueue returns an empty queue for sender.
func NewNavigationQueue(reg curriculum.Registry, seq *clock.Sequence, sender model.ImmutableID) *NavigationQueue {
	return &NavigationQueue{Queue: newQueue(seq), reg: reg, sender: sender}
}

func (q *NavigationQueue) SetCurrentView(entity model.ImmutableID, page int64) error {
	if err := manager.ValidateView(q.reg, entity, page); err != nil {
		return err
	}
	q.enqueue(MethodSetCurrentView, model.NewObject(
		model.O("entityId", model.Int(entity)),
		model.O("page", model.Int(page)),
	))
	return nil
}

// NextPage and PreviousPage depend on the position at replay time, so
// bounds are only checked by the handler.
func (q *NavigationQueue) NextPage() error {
	q.enqueue(MethodNextPage, model.Object{})
	return nil
}

func (q *NavigationQueue) PreviousPage() error {
	q.enqueue(MethodPreviousPage, model.Object{})
	return nil
}

func (q *NavigationQueue) enqueue(method string, args model.Object) {
	q.push(model.Message{Family: model.FamilyNavigation, ComponentID: q.sender, Method: method, Args: args})
}

// SettingsQueue is the producer side of the settings family.
type SettingsQueue struct {
	Queue
	sender model.ImmutableID
}

// NewSettingsQueue returns an empty queue for sender.
func NewSettingsQueue(seq *clock.Sequence, sender model.ImmutableID) *SettingsQueue {
	return &SettingsQueue{Queue: newQueue(seq), sender: sender}
}

func (q *SettingsQueue) Set(key string, v model.Value) error {
	if err := manager.ValidateSet(key, v); err != nil {
		return err
	}
	q.push(model.Message{
		Family:      model.FamilySettings,
		ComponentID: q.sender,
		Method:      MethodSetSetting,
		Args:        model.NewObject(model.O("key", model.String(key)), model.O("value", model.CloneValue(v))),
	})
	return nil
}

// ComponentProgressQueue is the producer side of one component's progress.
// It validates calls against the component's SECONDARY manager, which shares
// the kind and configuration of the primary.
type ComponentProgressQueue struct {
	Queue
	mgr *manager.ComponentProgressManager
}

// NewComponentProgressQueue returns an empty queue validating against mgr.
func NewComponentProgressQueue(seq *clock.Sequence, mgr *manager.ComponentProgressManager) *ComponentProgressQueue {
	return &ComponentProgressQueue{Queue: newQueue(seq), mgr: mgr}
}

// Submit enqueues a kind method call stamped with the component's own id.
func (q *ComponentProgressQueue) Submit(method string, args model.Object) error {
	if err := q.mgr.ValidateCall(method, args); err != nil {
		return err
	}
	q.push(model.Message{
		Family:      model.FamilyComponentProgress,
		ComponentID: q.mgr.ID(),
		Method:      method,
		Args:        args.Clone(),
	})
	return nil
}

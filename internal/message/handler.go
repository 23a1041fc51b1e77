package message

import (
	"fmt"

	"github.com/mera-platform/mera/internal/clock"
	"github.com/mera-platform/mera/internal/manager"
	"github.com/mera-platform/mera/internal/model"
)

// Handler replays messages of one family onto primary managers.
type Handler interface {
	Family() model.Family
	Handle(msg model.Message) error
}

func checkFamily(h Handler, msg model.Message) error {
	if msg.Family != h.Family() {
		return fmt.Errorf("%s handler received %s message", h.Family(), msg.Family)
	}
	return nil
}

// OverallProgressHandler replays overall-progress messages.
type OverallProgressHandler struct {
	mgr   *manager.OverallProgressManager
	clock clock.Clock
}

func NewOverallProgressHandler(mgr *manager.OverallProgressManager, c clock.Clock) *OverallProgressHandler {
	return &OverallProgressHandler{mgr: mgr, clock: c}
}

func (h *OverallProgressHandler) Family() model.Family { return model.FamilyOverallProgress }

func (h *OverallProgressHandler) Handle(msg model.Message) error {
	if err := checkFamily(h, msg); err != nil {
		return err
	}
	now := clock.Millis(h.clock)
	switch msg.Method {
	case MethodMarkLessonComplete, MethodMarkLessonIncomplete:
		id, err := idArg(msg.Method, msg.Args, "lessonId")
		if err != nil {
			return err
		}
		if msg.Method == MethodMarkLessonComplete {
			return h.mgr.MarkLessonComplete(id, now)
		}
		return h.mgr.MarkLessonIncomplete(id, now)
	case MethodMarkDomainComplete, MethodMarkDomainIncomplete:
		id, err := idArg(msg.Method, msg.Args, "domainId")
		if err != nil {
			return err
		}
		if msg.Method == MethodMarkDomainComplete {
			return h.mgr.MarkDomainComplete(id, now)
		}
		return h.mgr.MarkDomainIncomplete(id, now)
	default:
		return &UnknownMethodError{Family: h.Family(), Method: msg.Method}
	}
}

// NavigationHandler replays navigation messages.
type NavigationHandler struct {
	mgr   *manager.NavigationManager
	clock clock.Clock
}

func NewNavigationHandler(mgr *manager.NavigationManager, c clock.Clock) *NavigationHandler {
	return &NavigationHandler{mgr: mgr, clock: c}
}

func (h *NavigationHandler) Family() model.Family { return model.FamilyNavigation }

func (h *NavigationHandler) Handle(msg model.Message) error {
	if err := checkFamily(h, msg); err != nil {
		return err
	}
	now := clock.Millis(h.clock)
	switch msg.Method {
	case MethodSetCurrentView:
		entity, page, err := viewArgs(msg.Method, msg.Args)
		if err != nil {
			return err
		}
		return h.mgr.SetCurrentView(entity, page, now)
	case MethodNextPage, MethodPreviousPage:
		if err := exactKeys(msg.Method, msg.Args); err != nil {
			return err
		}
		if msg.Method == MethodNextPage {
			return h.mgr.NextPage(now)
		}
		return h.mgr.PreviousPage(now)
	default:
		return &UnknownMethodError{Family: h.Family(), Method: msg.Method}
	}
}

// SettingsHandler replays settings messages.
type SettingsHandler struct {
	mgr   *manager.SettingsManager
	clock clock.Clock
}

func NewSettingsHandler(mgr *manager.SettingsManager, c clock.Clock) *SettingsHandler {
	return &SettingsHandler{mgr: mgr, clock: c}
}

func (h *SettingsHandler) Family() model.Family { return model.FamilySettings }

func (h *SettingsHandler) Handle(msg model.Message) error {
	if err := checkFamily(h, msg); err != nil {
		return err
	}
	if msg.Method != MethodSetSetting {
		return &UnknownMethodError{Family: h.Family(), Method: msg.Method}
	}
	key, value, err := settingArgs(msg.Method, msg.Args)
	if err != nil {
		return err
	}
	return h.mgr.Set(key, value, clock.Millis(h.clock))
}

// ComponentProgressHandler replays kind method calls onto the primary
// manager named by the message. The engine has already checked that the
// message came from that component.
type ComponentProgressHandler struct {
	store *manager.ComponentStore
}

func NewComponentProgressHandler(store *manager.ComponentStore) *ComponentProgressHandler {
	return &ComponentProgressHandler{store: store}
}

func (h *ComponentProgressHandler) Family() model.Family { return model.FamilyComponentProgress }

func (h *ComponentProgressHandler) Handle(msg model.Message) error {
	if err := checkFamily(h, msg); err != nil {
		return err
	}
	primary, ok := h.store.Primary(msg.ComponentID)
	if !ok {
		return fmt.Errorf("component %d has no primary manager", msg.ComponentID)
	}
	if !primary.HasMethod(msg.Method) {
		return &UnknownMethodError{Family: h.Family(), Method: msg.Method}
	}
	return primary.Apply(msg.Method, msg.Args)
}

// Handlers returns one handler per family for state.
func Handlers(state *manager.State, c clock.Clock) map[model.Family]Handler {
	return map[model.Family]Handler{
		model.FamilyComponentProgress: NewComponentProgressHandler(state.Components),
		model.FamilyOverallProgress:   NewOverallProgressHandler(state.Overall, c),
		model.FamilyNavigation:        NewNavigationHandler(state.Navigation, c),
		model.FamilySettings:          NewSettingsHandler(state.Settings, c),
	}
}

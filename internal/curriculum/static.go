package curriculum

import (
	"cmp"
	"slices"

	"github.com/mera-platform/mera/internal/component/kinds"
	"github.com/mera-platform/mera/internal/model"
)

type entity struct {
	id     model.ImmutableID
	lesson bool
	pages  [][]Placement
}

type componentInfo struct {
	kind   kinds.Kind
	config model.Object
	entity model.ImmutableID
	lesson bool
}

// Static is an immutable Registry built from a Document.
type Static struct {
	defaultEntity model.ImmutableID
	domains       map[model.ImmutableID]string
	entities      map[model.ImmutableID]*entity
	components    map[model.ImmutableID]componentInfo
	domainLessons map[model.ImmutableID][]model.ImmutableID

	lessonIDs    []model.ImmutableID
	domainIDs    []model.ImmutableID
	componentIDs []model.ImmutableID
}

var _ Registry = (*Static)(nil)

// Build validates doc and returns the registry. All problems are reported
// together in a *BuildError:
//   - ids outside their kind's range, or used twice anywhere
//   - unknown component types, or configs the kind rejects
//   - lessons pointing at unregistered domains
//   - entities with no pages
//   - component configs referencing missing entities or pages
//   - a default entity that does not exist
func Build(doc *Document) (*Static, error) {
	problems := &BuildError{}
	s := &Static{
		domains:       make(map[model.ImmutableID]string),
		entities:      make(map[model.ImmutableID]*entity),
		components:    make(map[model.ImmutableID]componentInfo),
		domainLessons: make(map[model.ImmutableID][]model.ImmutableID),
	}
	seen := make(map[model.ImmutableID]string)
	claim := func(id model.ImmutableID, what string, want model.IDKind) bool {
		if got := model.KindOf(id); got != want {
			problems.add("%s id %d is in the %s range", what, id, got)
			return false
		}
		if prev, dup := seen[id]; dup {
			problems.add("%s id %d already used by %s", what, id, prev)
			return false
		}
		seen[id] = what
		return true
	}

	for _, d := range doc.Domains {
		id := model.ImmutableID(d.ID)
		if claim(id, "domain", model.IDKindDomain) {
			s.domains[id] = d.Title
			s.domainIDs = append(s.domainIDs, id)
		}
	}

	addEntity := func(e EntityDoc, lesson bool) {
		what, want := "menu", model.IDKindMenu
		if lesson {
			what, want = "lesson", model.IDKindLesson
		}
		id := model.ImmutableID(e.Metadata.ID)
		if !claim(id, what, want) {
			return
		}
		if len(e.Pages) == 0 {
			problems.add("%s %d has no pages", what, id)
		}
		if lesson {
			s.lessonIDs = append(s.lessonIDs, id)
			if e.Metadata.DomainID != 0 {
				domain := model.ImmutableID(e.Metadata.DomainID)
				if _, ok := s.domains[domain]; !ok {
					problems.add("lesson %d references unknown domain %d", id, domain)
				} else {
					s.domainLessons[domain] = append(s.domainLessons[domain], id)
				}
			}
		} else if e.Metadata.DomainID != 0 {
			problems.add("menu %d must not declare a domain", id)
		}

		ent := &entity{id: id, lesson: lesson, pages: make([][]Placement, len(e.Pages))}
		for pageIdx, page := range e.Pages {
			for _, c := range page.Components {
				cid := model.ImmutableID(c.ID)
				if !claim(cid, "component", model.IDKindComponent) {
					continue
				}
				kind, err := kinds.Parse(c.Type)
				if err != nil {
					problems.add("component %d: %v", cid, err)
					continue
				}
				cfg, err := configObject(c.Config)
				if err != nil {
					problems.add("component %d config: %v", cid, err)
					continue
				}
				def, ok := kinds.Lookup(kind)
				if !ok {
					problems.add("component %d: no definition for %s", cid, kind)
					continue
				}
				if err := def.ValidateConfig(cfg); err != nil {
					problems.add("component %d (%s) config: %v", cid, kind, err)
					continue
				}
				s.components[cid] = componentInfo{kind: kind, config: cfg, entity: id, lesson: lesson}
				s.componentIDs = append(s.componentIDs, cid)
				ent.pages[pageIdx] = append(ent.pages[pageIdx], Placement{ID: cid, Kind: kind, Order: c.Order})
			}
			slices.SortStableFunc(ent.pages[pageIdx], func(a, b Placement) int {
				if c := cmp.Compare(a.Order, b.Order); c != 0 {
					return c
				}
				return cmp.Compare(a.ID, b.ID)
			})
		}
		s.entities[id] = ent
	}
	for _, m := range doc.Menus {
		addEntity(m, false)
	}
	for _, l := range doc.Lessons {
		addEntity(l, true)
	}

	// Cross references are checked once every entity is known.
	for _, cid := range s.componentIDs {
		info := s.components[cid]
		def := kinds.MustLookup(info.kind)
		if def.References == nil {
			continue
		}
		for _, ref := range def.References(info.config) {
			if !ValidPosition(s, ref.Entity, ref.Page) {
				problems.add("component %d targets missing entity %d page %d", cid, ref.Entity, ref.Page)
			}
		}
	}

	s.defaultEntity = model.ImmutableID(doc.DefaultEntity)
	if s.defaultEntity == 0 {
		s.defaultEntity = s.firstEntity()
	}
	if !ValidPosition(s, s.defaultEntity, 0) {
		problems.add("default entity %d is not a registered menu or lesson", s.defaultEntity)
	}

	if len(problems.Problems) > 0 {
		return nil, problems
	}

	slices.Sort(s.lessonIDs)
	slices.Sort(s.domainIDs)
	slices.Sort(s.componentIDs)
	return s, nil
}

func configObject(cfg map[string]any) (model.Object, error) {
	if len(cfg) == 0 {
		return model.Object{}, nil
	}
	v, err := model.FromAny(cfg)
	if err != nil {
		return nil, err
	}
	return v.(model.Object), nil
}

// firstEntity picks the lowest menu id, else the lowest lesson id.
func (s *Static) firstEntity() model.ImmutableID {
	var best model.ImmutableID
	for id := range s.entities {
		if best == 0 || id < best {
			best = id
		}
	}
	return best
}

func (s *Static) HasLesson(id model.ImmutableID) bool {
	e, ok := s.entities[id]
	return ok && e.lesson
}

func (s *Static) HasDomain(id model.ImmutableID) bool {
	_, ok := s.domains[id]
	return ok
}

func (s *Static) HasEntity(id model.ImmutableID) bool {
	_, ok := s.entities[id]
	return ok
}

func (s *Static) EntityPageCount(id model.ImmutableID) (int64, bool) {
	e, ok := s.entities[id]
	if !ok {
		return 0, false
	}
	return int64(len(e.pages)), true
}

func (s *Static) AllLessonIDs() []model.ImmutableID    { return slices.Clone(s.lessonIDs) }
func (s *Static) AllDomainIDs() []model.ImmutableID    { return slices.Clone(s.domainIDs) }
func (s *Static) AllComponentIDs() []model.ImmutableID { return slices.Clone(s.componentIDs) }

func (s *Static) ComponentType(id model.ImmutableID) (kinds.Kind, bool) {
	c, ok := s.components[id]
	return c.kind, ok
}

func (s *Static) ComponentConfig(id model.ImmutableID) (model.Object, bool) {
	c, ok := s.components[id]
	if !ok {
		return nil, false
	}
	return c.config.Clone(), true
}

func (s *Static) LessonForComponent(id model.ImmutableID) (model.ImmutableID, bool) {
	c, ok := s.components[id]
	if !ok || !c.lesson {
		return 0, false
	}
	return c.entity, true
}

func (s *Static) LessonsInDomain(id model.ImmutableID) []model.ImmutableID {
	out := slices.Clone(s.domainLessons[id])
	slices.Sort(out)
	return out
}

func (s *Static) ComponentsOnPage(entity model.ImmutableID, page int64) []Placement {
	e, ok := s.entities[entity]
	if !ok || page < 0 || page >= int64(len(e.pages)) {
		return nil
	}
	return slices.Clone(e.pages[page])
}

func (s *Static) DefaultEntity() model.ImmutableID {
	return s.defaultEntity
}

// Summary counts registered content, for diagnostics.
type Summary struct {
	Menus      int `json:"menus"`
	Lessons    int `json:"lessons"`
	Domains    int `json:"domains"`
	Components int `json:"components"`
}

// Summary returns counts of registered content.
func (s *Static) Summary() Summary {
	return Summary{
		Menus:      len(s.entities) - len(s.lessonIDs),
		Lessons:    len(s.lessonIDs),
		Domains:    len(s.domainIDs),
		Components: len(s.componentIDs),
	}
}

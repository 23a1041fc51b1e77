package testutil

import (
	"testing"

	"github.com/mera-platform/mera/internal/curriculum"
)

// Fixture ids. The fixture curriculum is a home menu plus three lessons in
// two domains:
//
//	menu 1       page 0: start button (-> lesson 100), settings panel
//	lesson 100   page 0: welcome text, checklist task; page 1: finish button (-> 101, completes)
//	lesson 101   page 0: text, done button (-> menu 1, completes)
//	lesson 102   page 0: empty
const (
	HomeMenu      = 1
	LessonWelcome = 100
	LessonNext    = 101
	LessonTools   = 102

	DomainFoundations = 100_000
	DomainTooling     = 100_001

	StartButton   = 1_000_001
	SettingsPanel = 1_000_002
	WelcomeText   = 1_000_100
	WelcomeTask   = 1_000_101
	FinishButton  = 1_000_102
	NextText      = 1_000_200
	DoneButton    = 1_000_201
)

// FixtureYAML is the single-file registry behind Registry.
const FixtureYAML = `
defaultEntity: 1
domains:
  - id: 100000
    title: Foundations
  - id: 100001
    title: Tooling
menus:
  - metadata:
      id: 1
      title: Home
    pages:
      - components:
          - id: 1000001
            type: nav_button
            order: 10
            config:
              label: Start
              target: 100
          - id: 1000002
            type: settings_panel
            order: 20
lessons:
  - metadata:
      id: 100
      title: Welcome
      domainId: 100000
    pages:
      - components:
          - id: 1000101
            type: basic_task
            order: 20
            config:
              title: Get ready
              checkboxes: [read the intro, open the editor]
              requiredCheckboxes: 2
          - id: 1000100
            type: text_block
            order: 10
            config:
              text: Welcome to Mera
              sections: 2
      - components:
          - id: 1000102
            type: nav_button
            order: 10
            config:
              label: Finish
              target: 101
              completesLesson: true
  - metadata:
      id: 101
      title: Next steps
      domainId: 100000
    pages:
      - components:
          - id: 1000200
            type: text_block
            order: 10
            config:
              text: Keep going
          - id: 1000201
            type: nav_button
            order: 20
            config:
              label: Done
              target: 1
              completesLesson: true
  - metadata:
      id: 102
      title: Tools
      domainId: 100001
    pages:
      - components: []
`

// Registry builds the fixture registry or fails the test.
func Registry(t testing.TB) *curriculum.Static {
	t.Helper()
	doc, err := curriculum.Parse([]byte(FixtureYAML))
	if err != nil {
		t.Fatalf("parse fixture registry: %v", err)
	}
	reg, err := curriculum.Build(doc)
	if err != nil {
		t.Fatalf("build fixture registry: %v", err)
	}
	return reg
}

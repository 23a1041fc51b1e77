package integrity

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// Definitions in schema.cue.
const (
	defBundle            = "#Bundle"
	defMetadata          = "#Metadata"
	defOverallProgress   = "#OverallProgress"
	defSettings          = "#Settings"
	defNavigationState   = "#NavigationState"
	defComponentProgress = "#ComponentProgress"
)

// bundleSchema validates raw JSON against schema.cue.
//
// A cue.Context is not safe for concurrent use; mu serializes every
// validation.
type bundleSchema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

var (
	schemaOnce sync.Once
	schemaInst *bundleSchema
	schemaErr  error
)

func loadSchema() (*bundleSchema, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema.cue: %w", err)
			return
		}
		s := &bundleSchema{ctx: ctx, defs: make(map[string]cue.Value)}
		for _, name := range []string{defBundle, defMetadata, defOverallProgress, defSettings, defNavigationState, defComponentProgress} {
			v := root.LookupPath(cue.ParsePath(name))
			if !v.Exists() {
				schemaErr = fmt.Errorf("schema.cue: missing %s", name)
				return
			}
			s.defs[name] = v
		}
		schemaInst = s
	})
	return schemaInst, schemaErr
}

// validate unifies raw JSON with definition def and requires a concrete
// result.
func (s *bundleSchema) validate(def string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema, ok := s.defs[def]
	if !ok {
		return fmt.Errorf("unknown definition %s", def)
	}
	data := s.ctx.CompileBytes(raw, cue.Filename("input.json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

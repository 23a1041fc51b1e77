package message

import (
	"fmt"

	"github.com/mera-platform/mera/internal/model"
)

// Wire method names.
const (
	MethodMarkLessonComplete   = "markLessonComplete"
	MethodMarkLessonIncomplete = "markLessonIncomplete"
	MethodMarkDomainComplete   = "markDomainComplete"
	MethodMarkDomainIncomplete = "markDomainIncomplete"

	MethodSetCurrentView = "setCurrentView"
	MethodNextPage       = "nextPage"
	MethodPreviousPage   = "previousPage"

	MethodSetSetting = "setSetting"
)

// exactKeys rejects args with keys outside want or missing any of want.
func exactKeys(method string, args model.Object, want ...string) error {
	if len(args) != len(want) {
		return &ArgsError{Method: method, Reason: fmt.Sprintf("want keys %v, got %v", want, args.SortedKeys())}
	}
	for _, k := range want {
		if _, ok := args[k]; !ok {
			return &ArgsError{Method: method, Reason: fmt.Sprintf("missing %q", k)}
		}
	}
	return nil
}

func idArg(method string, args model.Object, key string) (model.ImmutableID, error) {
	if err := exactKeys(method, args, key); err != nil {
		return 0, err
	}
	n, ok := args.Int(key)
	if !ok {
		return 0, &ArgsError{Method: method, Reason: fmt.Sprintf("%q must be an integer", key)}
	}
	return model.ImmutableID(n), nil
}

func viewArgs(method string, args model.Object) (model.ImmutableID, int64, error) {
	if err := exactKeys(method, args, "entityId", "page"); err != nil {
		return 0, 0, err
	}
	entity, ok := args.Int("entityId")
	if !ok {
		return 0, 0, &ArgsError{Method: method, Reason: `"entityId" must be an integer`}
	}
	page, ok := args.Int("page")
	if !ok {
		return 0, 0, &ArgsError{Method: method, Reason: `"page" must be an integer`}
	}
	return model.ImmutableID(entity), page, nil
}

func settingArgs(method string, args model.Object) (string, model.Value, error) {
	if err := exactKeys(method, args, "key", "value"); err != nil {
		return "", nil, err
	}
	key, ok := args.String("key")
	if !ok {
		return "", nil, &ArgsError{Method: method, Reason: `"key" must be a string`}
	}
	return key, args["value"], nil
}

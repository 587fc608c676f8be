package mutation

// eventKeys are the properties every UI event object carries.
var eventKeys = []string{"bubbles", "persist", "isDefaultPrevented"}

// eventLike matches Go representations of UI events.
type eventLike interface {
	PreventDefault()
	StopPropagation()
}

// misusedAsEventHandler reports whether a call's single argument looks like
// the mutation was wired directly as an event callback.
func misusedAsEventHandler(args []any) bool {
	if len(args) != 1 {
		return false
	}

	switch v := args[0].(type) {
	case eventLike:
		return true
	case map[string]any:
		for _, k := range eventKeys {
			if _, ok := v[k]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

package activity

// ListOptions provides filtering options for listing activity.
type ListOptions struct {
	AgentID     string
	ResourceKey string
	EventType   *EventType
	Limit       int
	Offset      int
}

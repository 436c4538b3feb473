package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one event type per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// EventTypeSlotsChanged announces that an owner's weekly schedule changed;
// the payload carries the owner's full post-change slot snapshot so
// consumers never need to read back across service boundaries.
const EventTypeSlotsChanged = "availability.slots.changed.v1"

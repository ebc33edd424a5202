package outbox

// TopicMeetingBooked carries booking.MeetingBooked payloads.
const TopicMeetingBooked = "booking.meeting.booked.v1"

// Event is the envelope written to the outbox table. The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

package ooo

// Message is one result on the common data bus. A message with
// ClearDependency set carries no value: its producer was squashed.
type Message struct {
	Producer        Tag
	Value           uint32
	ClearDependency bool
}

// CommonDataBus collects the results published during one cycle. Every
// listener sees every message; the bus is cleared once all have listened.
type CommonDataBus struct {
	messages []Message
}

// NewCommonDataBus creates an empty bus.
func NewCommonDataBus() *CommonDataBus {
	return &CommonDataBus{}
}

// Broadcast publishes a result for tag.
func (b *CommonDataBus) Broadcast(tag Tag, value uint32, clearDependency bool) {
	b.messages = append(b.messages, Message{
		Producer:        tag,
		Value:           value,
		ClearDependency: clearDependency,
	})
}

// Messages returns the messages published this cycle.
func (b *CommonDataBus) Messages() []Message {
	return b.messages
}

// Reset drops all messages.
func (b *CommonDataBus) Reset() {
	b.messages = b.messages[:0]
}

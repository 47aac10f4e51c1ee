package chat

// Conversation is the bounded chat history of one session. It is not safe for
// concurrent use; the owning session serialises access.
type Conversation struct {
	turns     []Turn
	max       int
	issued    uint64
	committed uint64
}

// Ticket identifies an in-flight question and carries the history snapshot it
// was asked against.
type Ticket struct {
	seq     uint64
	History []Turn
}

// DefaultKeptTurns bounds the history shown in the chat log. Only the last
// Assistant.HistoryTurns of it reach the backend.
const DefaultKeptTurns = 50

// NewConversation keeps at most max turns; max <= 0 selects
// DefaultKeptTurns.
func NewConversation(max int) *Conversation {
	if max <= 0 {
		max = DefaultKeptTurns
	}
	return &Conversation{max: max}
}

// Begin issues a ticket for a new question.
func (c *Conversation) Begin() Ticket {
	c.issued++
	return Ticket{seq: c.issued, History: c.Turns()}
}

// Commit appends the exchange unless a later question has already been
// committed, in which case the reply is stale and is dropped.
func (c *Conversation) Commit(t Ticket, question, reply string) bool {
	if t.seq <= c.committed {
		return false
	}
	c.committed = t.seq

	c.turns = append(c.turns, Turn{User: question, Assistant: reply})
	if len(c.turns) > c.max {
		c.turns = append([]Turn(nil), c.turns[len(c.turns)-c.max:]...)
	}
	return true
}

func (c *Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

// Reset forgets the history. Outstanding tickets become stale.
func (c *Conversation) Reset() {
	c.turns = nil
	c.committed = c.issued
}

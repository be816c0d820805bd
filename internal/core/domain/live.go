package domain

// LiveMessage is the envelope pushed to subscribers of a ticket channel
// after an append commits. A bulk write spanning several tickets produces
// one message per distinct ticket, never an aggregate.
type LiveMessage struct {
	TicketID    string          `json:"ticket_id"`
	FormContext string          `json:"form_context,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Events      []ActivityEvent `json:"events"`
}

// TicketTopic names the live channel of one ticket.
func TicketTopic(ticketID string) string {
	return "timeline.ticket." + ticketID
}

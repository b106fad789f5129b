package model

// Event is the read-only projection of a host row that the client-side
// calendar renders. It only lives for the duration of one response.
type Event struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// EventList is the body of the events endpoint.
type EventList struct {
	Events []Event `json:"events"`
}

package domain

// Message is an outgoing email. HTML is required, Text is the plain
// alternative part.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

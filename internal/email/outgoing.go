package email

// Outgoing is the assembled wrapper message, ready for delivery.
type Outgoing struct {
	// From and To are the SMTP envelope addresses.
	From string
	To   string

	Subject string

	// Inline reports whether the best-effort message/rfc822 rendering of the
	// original message was included.
	Inline bool

	// Raw is the complete RFC 5322 message.
	Raw []byte
}

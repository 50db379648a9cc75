// Package sender derives a best-effort display name for whoever handed the
// message to sendmail, from the -f envelope flag and the message's From header.
package sender

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/emersion/go-message/mail"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// Unknown is the identity used when neither source yields a candidate.
const Unknown = "???"

// envelopeFlag is the sendmail flag carrying the envelope sender.
const envelopeFlag = "-f"

var cronPattern = sync.OnceValue(func() *regexp.Regexp {
	return regexp.MustCompile(`(\S+) \(Cron Daemon\)`)
})

// Resolve combines the envelope and header candidates into one display
// string. It never fails; missing or ambiguous sources are left out.
func Resolve(args email.Args, msg *email.Message) string {
	evlp, evlpOK := Envelope(args)
	hdr, hdrOK := Header(msg)
	slog.Debug("resolving sender identity",
		"envelope", evlp, "envelope_found", evlpOK,
		"header", hdr, "header_found", hdrOK,
	)
	return Combine(evlp, evlpOK, hdr, hdrOK)
}

// Combine applies the precedence table to two optional candidates.
func Combine(evlp string, evlpOK bool, hdr string, hdrOK bool) string {
	evlp, hdr = EscapeParens(evlp), EscapeParens(hdr)

	switch {
	case evlpOK && hdrOK && evlp == hdr:
		return fmt.Sprintf("evlp+hdr(%s)", evlp)
	case evlpOK && hdrOK:
		return fmt.Sprintf("evlp(%s)+hdr(%s)", evlp, hdr)
	case evlpOK:
		return fmt.Sprintf("evlp(%s)", evlp)
	case hdrOK:
		return fmt.Sprintf("hdr(%s)", hdr)
	default:
		return Unknown
	}
}

// Envelope returns the value of the single -f<value> argument. Two or more
// such arguments cannot be arbitrated and count as none.
func Envelope(args email.Args) (string, bool) {
	var (
		from  string
		found bool
	)
	if len(args.Values) < 2 {
		return "", false
	}
	for _, arg := range args.Values[1:] {
		v, ok := strings.CutPrefix(arg, envelopeFlag)
		if !ok {
			continue
		}
		if found {
			slog.Debug("multiple envelope sender flags, ignoring all of them")
			return "", false
		}
		from, found = v, true
	}
	return from, found
}

// Header extracts the sender address from the single From header of msg.
// When the header is not an address list, the classic cron format
// "user (Cron Daemon)" is tried instead.
func Header(msg *email.Message) (string, bool) {
	if msg == nil {
		return "", false
	}

	values := msg.Values("From")
	if len(values) != 1 {
		slog.Debug("no unambiguous From header", "count", len(values))
		return "", false
	}
	value := values[0]

	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		slog.Debug("failed to parse From header, trying cron format", "error", err)
		return CronUser(value)
	}
	if len(addrs) != 1 {
		slog.Debug("From header does not hold exactly one address", "count", len(addrs))
		return "", false
	}
	return addrs[0].Address, true
}

// CronUser returns the token preceding " (Cron Daemon)" in v.
func CronUser(v string) (string, bool) {
	m := cronPattern().FindStringSubmatch(v)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// EscapeParens backslash-escapes parentheses so s can sit inside the
// parenthesized tags of an identity.
func EscapeParens(s string) string {
	if !strings.ContainsAny(s, "()") {
		return s
	}
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}

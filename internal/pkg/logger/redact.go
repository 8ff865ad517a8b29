package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "marta.vila@bcn.cat" → "ma***@bcn.cat"; local parts of two characters
// or fewer are fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "***@***"
	}
	name, domain := email[:at], email[at+1:]
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}

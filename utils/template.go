package utils

import "strings"

// RenderTemplate substitutes the {{token}} placeholders a sequence step's
// subject and body may carry. It never fails: missing metadata falls back to
// the local part of the email for first_name and to the empty string for
// last_name, and unrecognized tokens pass through untouched.
func RenderTemplate(template, email string, metadata map[string]string) string {
	firstName := metadata["first_name"]
	if firstName == "" {
		if at := strings.Index(email, "@"); at >= 0 {
			firstName = email[:at]
		} else {
			firstName = email
		}
	}
	lastName := metadata["last_name"]
	fullName := strings.TrimSpace(firstName + " " + lastName)

	out := template
	out = strings.ReplaceAll(out, "{{email}}", email)
	out = strings.ReplaceAll(out, "{{first_name}}", firstName)
	out = strings.ReplaceAll(out, "{{last_name}}", lastName)
	out = strings.ReplaceAll(out, "{{full_name}}", fullName)
	return out
}

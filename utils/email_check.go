package utils

import (
	"strings"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
)

// EmailCheckResult summarizes the hygiene checks run on a captured address
type EmailCheckResult struct {
	Email  string `json:"email"`
	Status string `json:"status"` // valid, invalid, disposable, unknown
	Reason string `json:"reason,omitempty"`
}

var disposableDomains = loadDisposableDomains()

// CheckEmail runs cheap hygiene checks on a lead-capture address: syntax,
// disposable-domain list, MX lookup. It never blocks on slow checks; anything
// past the MX lookup degrades to "unknown" rather than rejecting the lead.
func CheckEmail(email string) EmailCheckResult {
	result := EmailCheckResult{Email: email, Status: "valid"}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Reason = "malformed address"
		return result
	}

	parts := strings.Split(email, "@")
	domain := strings.ToLower(parts[len(parts)-1])

	if disposableDomains[domain] {
		result.Status = "disposable"
		result.Reason = "disposable domain"
		return result
	}

	if err := checkmail.ValidateHost(domain); err != nil {
		result.Status = "invalid"
		result.Reason = "no mail host for domain"
		return result
	}

	return result
}

// DomainRegistered reports whether WHOIS data exists for the domain. Used as
// an optional extra signal on suspicious captures; lookup failures count as
// registered so flaky WHOIS servers never reject a real lead.
func DomainRegistered(domain string) bool {
	info, err := whois.Whois(domain)
	if err != nil {
		return true
	}
	lower := strings.ToLower(info)
	return !strings.Contains(lower, "no match for") && !strings.Contains(lower, "not found")
}

func loadDisposableDomains() map[string]bool {
	domains := map[string]bool{}
	for _, d := range strings.Split(disposableDomainList, "\n") {
		d = strings.TrimSpace(d)
		if d != "" {
			domains[d] = true
		}
	}
	return domains
}

const disposableDomainList = `
10minutemail.com
20minutemail.com
33mail.com
dispostable.com
disposableinbox.com
fakeinbox.com
getairmail.com
getnada.com
guerrillamail.com
guerrillamail.net
inboxkitten.com
mailcatch.com
maildrop.cc
mailinator.com
mailnesia.com
mintemail.com
mohmal.com
mytemp.email
sharklasers.com
spamgourmet.com
tempail.com
temp-mail.org
tempmail.dev
tempmailo.com
throwawaymail.com
trashmail.com
yopmail.com
`

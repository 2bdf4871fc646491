package verification

import (
	"fmt"

	"intromarket/internal/domainmatch"
)

// CompanyStatus is the verdict of a company domain check.
type CompanyStatus string

const (
	CompanyVerdictVerified     CompanyStatus = "VERIFIED"
	CompanyVerdictUnverified   CompanyStatus = "UNVERIFIED"
	CompanyVerdictManualReview CompanyStatus = "MANUAL_REVIEW"
)

const NoteDomainMatch = "auto-verified: domain match"

type CompanyVerdict struct {
	Status CompanyStatus
	Reason string
}

// DecideCompany compares the company website with the admin partner's
// email. It is deterministic for the same inputs and strategy.
func DecideCompany(matcher domainmatch.Matcher, website, adminEmail string, hasAdmin bool) CompanyVerdict {
	if !hasAdmin {
		return CompanyVerdict{
			Status: CompanyVerdictManualReview,
			Reason: "company has no ADMIN hr partner; domain cannot be verified automatically",
		}
	}

	cmp := matcher.Compare(website, adminEmail)
	switch cmp.Verdict {
	case domainmatch.VerdictMatch:
		return CompanyVerdict{Status: CompanyVerdictVerified, Reason: NoteDomainMatch}
	case domainmatch.VerdictMismatch:
		return CompanyVerdict{
			Status: CompanyVerdictUnverified,
			Reason: fmt.Sprintf("domain mismatch: website %q vs admin email %q", cmp.WebsiteDomain, cmp.EmailDomain),
		}
	default:
		return CompanyVerdict{
			Status: CompanyVerdictManualReview,
			Reason: fmt.Sprintf("could not parse domains (website %q, admin email %q)", website, adminEmail),
		}
	}
}

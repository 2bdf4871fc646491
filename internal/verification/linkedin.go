package verification

import (
	"context"
	"regexp"
	"strings"

	dErrors "intromarket/pkg/domain-errors"
)

var linkedInProfilePattern = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/in/[A-Za-z0-9_%-]+/?$`)

// ValidateLinkedInURL accepts canonical public profile URLs only.
func ValidateLinkedInURL(raw string) error {
	if !linkedInProfilePattern.MatchString(strings.TrimSpace(raw)) {
		return dErrors.New(dErrors.CodeInvalidFormat, "linkedin url must look like https://www.linkedin.com/in/<handle>")
	}
	return nil
}

// CheckLinkedIn validates the URL and asks the prober whether it resolves.
// It does not retry; Service owns the retry policy.
func CheckLinkedIn(ctx context.Context, prober Prober, raw string) error {
	if err := ValidateLinkedInURL(raw); err != nil {
		return err
	}
	if err := prober.Probe(ctx, strings.TrimSpace(raw)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnreachable, "linkedin profile is unreachable")
	}
	return nil
}

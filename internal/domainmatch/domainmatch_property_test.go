package domainmatch

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func labelGen() gopter.Gen {
	return gen.RegexMatch("[a-z][a-z0-9]{1,10}")
}

func TestCompareProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("compare is total over arbitrary input", prop.ForAll(
		func(website, email string) bool {
			v := Compare(website, email).Verdict
			return v == VerdictMatch || v == VerdictMismatch || v == VerdictManualReview
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("same root matches regardless of subdomain and case", prop.ForAll(
		func(sub, name, tld, local string) bool {
			website := "https://www." + sub + "." + name + "." + tld
			email := local + "@" + strings.ToUpper(name+"."+tld)
			return Compare(website, email).Verdict == VerdictMatch
		},
		labelGen(), labelGen(), gen.OneConstOf("com", "io", "org", "dev"), labelGen(),
	))

	properties.Property("different names mismatch", prop.ForAll(
		func(a, b, tld string) bool {
			got := Compare("https://"+a+"."+tld, "hr@"+b+"."+tld).Verdict
			if a == b {
				return got == VerdictMatch
			}
			return got == VerdictMismatch
		},
		labelGen(), labelGen(), gen.OneConstOf("com", "net"),
	))

	properties.Property("domains match is symmetric", prop.ForAll(
		func(a, b string) bool {
			return DomainsMatch(a, b) == DomainsMatch(b, a)
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEffectiveStatusProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	statusGen := gen.OneConstOf(StatusPending, StatusAccepted, StatusDeclined, StatusExpired)
	offsetGen := gen.Int64Range(-30*24*3600, 30*24*3600)

	properties.Property("terminal statuses are never rewritten", prop.ForAll(
		func(stored Status, offset int64) bool {
			r := &Request{Status: stored, ExpiresAt: base.Add(time.Duration(offset) * time.Second)}
			if stored.IsTerminal() {
				return EffectiveStatus(r, base) == stored
			}
			return true
		},
		statusGen, offsetGen,
	))

	properties.Property("pending becomes expired exactly when expiry is not after now", prop.ForAll(
		func(offset int64) bool {
			r := &Request{Status: StatusPending, ExpiresAt: base.Add(time.Duration(offset) * time.Second)}
			got := EffectiveStatus(r, base)
			if offset > 0 {
				return got == StatusPending
			}
			return got == StatusExpired
		},
		offsetGen,
	))

	properties.Property("once expired it stays expired as time moves on", prop.ForAll(
		func(offset, later int64) bool {
			r := &Request{Status: StatusPending, ExpiresAt: base.Add(time.Duration(offset) * time.Second)}
			if EffectiveStatus(r, base) != StatusExpired {
				return true
			}
			return EffectiveStatus(r, base.Add(time.Duration(later)*time.Second)) == StatusExpired
		},
		offsetGen, gen.Int64Range(0, 365*24*3600),
	))

	properties.TestingRun(t)
}

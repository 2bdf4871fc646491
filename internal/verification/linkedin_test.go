package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "intromarket/pkg/domain-errors"
)

type probeFunc func(ctx context.Context, url string) error

func (f probeFunc) Probe(ctx context.Context, url string) error { return f(ctx, url) }

func TestValidateLinkedInURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		valid bool
	}{
		{"canonical", "https://www.linkedin.com/in/jane-doe", true},
		{"no www", "https://linkedin.com/in/jane_doe", true},
		{"http scheme", "http://www.linkedin.com/in/jane", true},
		{"trailing slash", "https://www.linkedin.com/in/jane-doe/", true},
		{"percent encoded handle", "https://www.linkedin.com/in/j%C3%A9r%C3%B4me", true},
		{"company page", "https://www.linkedin.com/company/acme", false},
		{"missing handle", "https://www.linkedin.com/in/", false},
		{"other host", "https://linkedin.evil.com/in/jane", false},
		{"no scheme", "www.linkedin.com/in/jane", false},
		{"nested path", "https://www.linkedin.com/in/jane/details", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLinkedInURL(tt.url)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidFormat))
		})
	}
}

func TestCheckLinkedIn(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid format never probes", func(t *testing.T) {
		called := false
		err := CheckLinkedIn(ctx, probeFunc(func(context.Context, string) error {
			called = true
			return nil
		}), "https://example.com/in/jane")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidFormat))
		assert.False(t, called)
	})

	t.Run("probe failure is unreachable", func(t *testing.T) {
		err := CheckLinkedIn(ctx, probeFunc(func(context.Context, string) error {
			return errors.New("dial tcp: timeout")
		}), "https://www.linkedin.com/in/jane")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnreachable))
	})

	t.Run("reachable profile passes", func(t *testing.T) {
		var probed string
		err := CheckLinkedIn(ctx, probeFunc(func(_ context.Context, url string) error {
			probed = url
			return nil
		}), "  https://www.linkedin.com/in/jane ")
		require.NoError(t, err)
		assert.Equal(t, "https://www.linkedin.com/in/jane", probed)
	})
}

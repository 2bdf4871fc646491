package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	accountmodels "intromarket/internal/accounts/models"
	accountstore "intromarket/internal/accounts/store"
	jwttoken "intromarket/internal/jwt_token"
	"intromarket/internal/platform/config"
	id "intromarket/pkg/domain"
	"intromarket/pkg/requestcontext"
	"intromarket/pkg/testutil"
)

func TestRouterWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.AdminToken = "ops-token"
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	testutil.Given(t, "the router on in-memory stores", func(t *testing.T) {
		b, err := openBackend(context.Background(), cfg, log)
		require.NoError(t, err)
		require.Equal(t, "memory", b.kind)
		a := newApp(cfg, log, b, appMetrics{})

		accounts, ok := b.accounts.(*accountstore.InMemory)
		require.True(t, ok)
		cid := id.CompanyID(uuid.New())
		hid := id.HRPartnerID(uuid.New())
		pid := id.ProfessionalID(uuid.New())
		ctx := context.Background()
		require.NoError(t, accounts.CreateCompany(ctx, &accountmodels.Company{
			ID: cid, Name: "Acme", VerificationStatus: accountmodels.CompanyVerified, IntroductionCredits: 1,
		}))
		require.NoError(t, accounts.CreateHRPartner(ctx, &accountmodels.HRPartner{
			ID: hid, CompanyID: cid, Role: accountmodels.PartnerRecruiter, Email: "r@acme.com",
		}))
		require.NoError(t, accounts.CreateProfessional(ctx, &accountmodels.Professional{
			ID: pid, VerificationStatus: accountmodels.ProfessionalBasic,
		}))

		tokens := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
		bearer := func(uid uuid.UUID, role requestcontext.Role) string {
			token, err := tokens.GenerateAccessToken(id.UserID(uid), role, time.Hour)
			require.NoError(t, err)
			return "Bearer " + token
		}

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

			testutil.Then(t, "it reports ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "ok")
			})
		})

		testutil.When(t, "sending without a bearer token", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewJSONRequest(t, http.MethodPost, "/introductions", map[string]string{
				"company_id": cid.String(), "professional_id": pid.String(),
			}))

			testutil.Then(t, "it is unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})

		testutil.When(t, "an HR partner sends with a valid token", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/introductions", map[string]string{
				"company_id": cid.String(), "professional_id": pid.String(),
			})
			req.Header.Set("Authorization", bearer(uuid.UUID(hid), requestcontext.RoleHRPartner))
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the request is created", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
				testutil.AssertJSONHasKey(t, rr, "request_id")
			})
		})

		testutil.When(t, "the professional lists their inbox", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodGet, "/professionals/me/introductions")
			req.Header.Set("Authorization", bearer(uuid.UUID(pid), requestcontext.RoleProfessional))
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "the pending request is listed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "total", float64(1))
			})
		})

		testutil.When(t, "calling an admin route without the admin token", func(t *testing.T) {
			rr := testutil.DoRequest(a.router, testutil.NewRequest(t, http.MethodGet, "/admin/settings"))

			testutil.Then(t, "it is unauthorized", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "the scheduler triggers reconciliation", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/introductions/reconcile", map[string]int{"batch_size": 100})
			req.Header.Set("X-Admin-Token", "ops-token")
			rr := testutil.DoRequest(a.router, req)

			testutil.Then(t, "nothing has expired yet", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "count", float64(0))
			})
		})
	})
}

func TestAuditRelayWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	testutil.Given(t, "kafka brokers on in-memory stores", func(t *testing.T) {
		b, err := openBackend(context.Background(), cfg, log)
		require.NoError(t, err)
		require.Nil(t, b.outbox)

		testutil.When(t, "building the audit relay", func(t *testing.T) {
			rl, closeRelay, err := newAuditRelay(context.Background(), cfg, b, log)

			testutil.Then(t, "the relay is disabled", func(t *testing.T) {
				require.NoError(t, err)
				require.Nil(t, rl)
				require.NotNil(t, closeRelay)
				closeRelay()
			})
		})
	})
}

package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow/internal/applicant/models"
	"creditflow/internal/applicant/store"
	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/testutil"
)

type stubCounter struct {
	counts map[id.ApplicantID]int
	err    error
}

func (c stubCounter) CountByApplicant(_ context.Context, applicantID id.ApplicantID) (int, error) {
	return c.counts[applicantID], c.err
}

type failingStore struct{}

func (failingStore) FindProfile(context.Context, id.ApplicantID) (*models.Profile, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) List(context.Context, []id.ApplicantID) ([]*models.Profile, error) {
	return nil, errors.New("connection reset")
}

func ptr[T any](v T) *T { return &v }

func newRouter(s Store, counter EvaluationCounter) http.Handler {
	r := chi.NewRouter()
	New(s, counter, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func seeded(t *testing.T) *store.InMemoryStore {
	t.Helper()
	s := store.NewInMemoryStore()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Save(context.Background(), &models.Profile{
		Customer: models.Customer{ID: "CLI12345", Name: "Good Payer", Age: ptr(35), MonthlyIncome: ptr(8000.0), CreatedAt: at},
		Bureau:   &models.BureauRecord{Score: ptr(850), Status: evmodels.BureauRegular, UpdatedAt: at},
		Banking:  &models.BankingRecord{HasAccount: true, AverageBalance: 5000, RelationshipMonths: 60, UpdatedAt: at},
	}))
	require.NoError(t, s.Save(context.Background(), &models.Profile{
		Customer: models.Customer{ID: "CLI24680", Name: "New Customer", CreatedAt: at},
	}))
	return s
}

func TestGetCustomer(t *testing.T) {
	s := seeded(t)

	testutil.Given(t, "a known customer with two evaluations", func(t *testing.T) {
		counter := stubCounter{counts: map[id.ApplicantID]int{"CLI12345": 2}}
		rr := testutil.DoRequest(newRouter(s, counter), testutil.NewRequest(t, http.MethodGet, "/customers/CLI12345"))

		testutil.Then(t, "the profile and history count are returned", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			body := testutil.UnmarshalResponse[CustomerResponse](t, rr)
			assert.Equal(t, "Good Payer", body.Name)
			require.NotNil(t, body.Bureau)
			assert.Equal(t, 850, *body.Bureau.Score)
			require.NotNil(t, body.Banking)
			assert.Equal(t, 60, body.Banking.RelationshipMonths)
			require.NotNil(t, body.EvaluationCount)
			assert.Equal(t, 2, *body.EvaluationCount)
		})
	})

	testutil.Given(t, "a customer without bureau or banking data", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers/CLI24680"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[CustomerResponse](t, rr)
		assert.Nil(t, body.Bureau)
		assert.Nil(t, body.Banking)
		assert.Equal(t, 0, *body.EvaluationCount)
	})

	testutil.When(t, "the customer is unknown", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers/ghost"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	testutil.When(t, "the id is malformed", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers/bad%20id"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	testutil.When(t, "the stores fail", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(failingStore{}, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers/CLI1"))
		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")

		rr = testutil.DoRequest(newRouter(s, stubCounter{err: errors.New("db down")}), testutil.NewRequest(t, http.MethodGet, "/customers/CLI12345"))
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	})
}

func TestListCustomers(t *testing.T) {
	s := seeded(t)

	t.Run("lists everything", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[CustomerListResponse](t, rr)
		assert.Equal(t, 2, body.Total)
		assert.Equal(t, "CLI12345", body.Customers[0].ID)
		assert.Nil(t, body.Customers[0].EvaluationCount)
	})

	t.Run("filters by id", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers?id=CLI24680&id=ghost"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[CustomerListResponse](t, rr)
		require.Equal(t, 1, body.Total)
		assert.Equal(t, "CLI24680", body.Customers[0].ID)
	})

	t.Run("accepts comma separated ids", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers?id=CLI24680,CLI12345&id=CLI24680"))
		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[CustomerListResponse](t, rr)
		assert.Equal(t, 2, body.Total)
	})

	t.Run("rejects invalid ids", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(s, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers?id=a*b"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("store failure", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(failingStore{}, stubCounter{}), testutil.NewRequest(t, http.MethodGet, "/customers"))
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	})
}

package credit

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetLastStatusCode() int
	DecodeResponse(v any) error
	Remember(key, value string)
	Recall(key string) (string, bool)
}

// RegisterSteps registers credit evaluation step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &creditSteps{tc: tc}

	ctx.Step(`^applicant "([^"]*)" requests (\d+) over (\d+) months$`, steps.requestEvaluation)
	ctx.Step(`^applicant "([^"]*)" requests (\d+) with no term$`, steps.requestEvaluationWithoutTerm)
	ctx.Step(`^I submit an evaluation with body:$`, steps.submitRawEvaluation)
	ctx.Step(`^I fetch the last evaluation$`, steps.fetchLastEvaluation)
	ctx.Step(`^I list the evaluations of applicant "([^"]*)"$`, steps.listEvaluations)
	ctx.Step(`^I look up customer "([^"]*)"$`, steps.lookUpCustomer)

	ctx.Step(`^the evaluation status should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the evaluation status should not be "([^"]*)"$`, steps.statusShouldNotBe)
	ctx.Step(`^the manual review reason should be "([^"]*)"$`, steps.manualReviewReasonShouldBe)
	ctx.Step(`^the trail should contain a failed "([^"]*)" entry$`, steps.trailShouldContainFailed)
	ctx.Step(`^the trail should not contain "([^"]*)"$`, steps.trailShouldNotContain)
	ctx.Step(`^the advisor should have been consulted$`, steps.advisorConsulted)
	ctx.Step(`^the advisor should not have been consulted$`, steps.advisorNotConsulted)
	ctx.Step(`^the listing should contain at least (\d+) evaluations?$`, steps.listingShouldContainAtLeast)
}

type trailEntry struct {
	RuleName string `json:"rule_name"`
	Passed   bool   `json:"passed"`
}

type evaluation struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	ManualReviewReason string         `json:"manual_review_reason"`
	Trail              []trailEntry   `json:"trail"`
	Advisor            map[string]any `json:"advisor"`
}

type creditSteps struct {
	tc   TestContext
	last evaluation
}

func (s *creditSteps) requestEvaluation(ctx context.Context, applicant string, amount, term int) error {
	return s.submit(map[string]any{
		"applicant_id":          applicant,
		"requested_amount":      amount,
		"additional_parameters": map[string]any{"term": term},
	})
}

func (s *creditSteps) requestEvaluationWithoutTerm(ctx context.Context, applicant string, amount int) error {
	return s.submit(map[string]any{"applicant_id": applicant, "requested_amount": amount})
}

func (s *creditSteps) submitRawEvaluation(ctx context.Context, body *godog.DocString) error {
	return s.submit(rawJSON(body.Content))
}

func (s *creditSteps) submit(body any) error {
	if err := s.tc.POST("/credit/evaluations", body); err != nil {
		return err
	}
	return s.capture()
}

func (s *creditSteps) fetchLastEvaluation(ctx context.Context) error {
	evalID, ok := s.tc.Recall("evaluation_id")
	if !ok {
		return fmt.Errorf("no evaluation created in this scenario")
	}
	if err := s.tc.GET("/credit/evaluations/"+evalID, nil); err != nil {
		return err
	}
	return s.capture()
}

func (s *creditSteps) listEvaluations(ctx context.Context, applicant string) error {
	return s.tc.GET("/credit/applicants/"+applicant+"/evaluations", nil)
}

func (s *creditSteps) lookUpCustomer(ctx context.Context, customer string) error {
	return s.tc.GET("/customers/"+customer, nil)
}

func (s *creditSteps) capture() error {
	s.last = evaluation{}
	if code := s.tc.GetLastStatusCode(); code != 200 && code != 201 {
		return nil
	}
	if err := s.tc.DecodeResponse(&s.last); err != nil {
		return fmt.Errorf("decode evaluation: %w", err)
	}
	s.tc.Remember("evaluation_id", s.last.ID)
	return nil
}

func (s *creditSteps) statusShouldBe(ctx context.Context, status string) error {
	if s.last.Status != status {
		return fmt.Errorf("expected status %s, got %q", status, s.last.Status)
	}
	return nil
}

func (s *creditSteps) statusShouldNotBe(ctx context.Context, status string) error {
	if s.last.Status == "" || s.last.Status == status {
		return fmt.Errorf("expected a status other than %s, got %q", status, s.last.Status)
	}
	return nil
}

func (s *creditSteps) manualReviewReasonShouldBe(ctx context.Context, reason string) error {
	if s.last.ManualReviewReason != reason {
		return fmt.Errorf("expected manual review reason %q, got %q", reason, s.last.ManualReviewReason)
	}
	return nil
}

func (s *creditSteps) trailShouldContainFailed(ctx context.Context, rule string) error {
	for _, e := range s.last.Trail {
		if e.RuleName == rule && !e.Passed {
			return nil
		}
	}
	return fmt.Errorf("no failed %s entry in trail %v", rule, s.last.Trail)
}

func (s *creditSteps) trailShouldNotContain(ctx context.Context, rule string) error {
	for _, e := range s.last.Trail {
		if e.RuleName == rule {
			return fmt.Errorf("unexpected %s entry in trail", rule)
		}
	}
	return nil
}

func (s *creditSteps) advisorConsulted(ctx context.Context) error {
	if s.last.Advisor == nil {
		return fmt.Errorf("expected an advisor outcome")
	}
	return nil
}

func (s *creditSteps) advisorNotConsulted(ctx context.Context) error {
	if s.last.Advisor != nil {
		return fmt.Errorf("expected no advisor outcome, got %v", s.last.Advisor)
	}
	return nil
}

func (s *creditSteps) listingShouldContainAtLeast(ctx context.Context, n int) error {
	var listing struct {
		Total int `json:"total"`
	}
	if err := s.tc.DecodeResponse(&listing); err != nil {
		return err
	}
	if listing.Total < n {
		return fmt.Errorf("expected at least %d evaluations, got %d", n, listing.Total)
	}
	return nil
}

type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return []byte(strings.TrimSpace(string(r))), nil
}

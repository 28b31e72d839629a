package rules

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	Send(method, path string, body any, headers map[string]string) error
	GetLastStatusCode() int
	DecodeResponse(v any) error
	GetReviewerToken() string
}

// RegisterSteps registers rule administration step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &rulesSteps{tc: tc}

	ctx.Step(`^I am a reviewer$`, steps.iAmAReviewer)
	ctx.Step(`^rule "([^"]*)" is (active|inactive)$`, steps.ruleIs)
	ctx.Step(`^I (approve|unapprove) rule "([^"]*)"$`, steps.setApproval)
	ctx.Step(`^I (approve|unapprove) rule "([^"]*)" without authentication$`, steps.setApprovalWithoutAuth)
	ctx.Step(`^I list the rules$`, steps.listRules)
	ctx.Step(`^the rule list should contain "([^"]*)"$`, steps.ruleListShouldContain)
}

type rule struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Approved bool   `json:"approved"`
	Active   bool   `json:"active"`
}

type rulesSteps struct {
	tc TestContext
}

func (s *rulesSteps) iAmAReviewer(ctx context.Context) error {
	if s.tc.GetReviewerToken() == "" {
		return godog.ErrPending
	}
	return nil
}

func (s *rulesSteps) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tc.GetReviewerToken()}
}

func (s *rulesSteps) find(name string) (rule, error) {
	if err := s.tc.GET("/rules", nil); err != nil {
		return rule{}, err
	}
	var listing struct {
		Rules []rule `json:"rules"`
	}
	if err := s.tc.DecodeResponse(&listing); err != nil {
		return rule{}, err
	}
	for _, r := range listing.Rules {
		if r.Name == name {
			return r, nil
		}
	}
	return rule{}, fmt.Errorf("rule %q not found", name)
}

func (s *rulesSteps) ruleIs(ctx context.Context, name, state string) error {
	r, err := s.find(name)
	if err != nil {
		return err
	}
	body := map[string]any{"active": state == "active"}
	if err := s.tc.Send(http.MethodPatch, "/rules/"+r.ID+"/activation", body, s.auth()); err != nil {
		return err
	}
	if s.tc.GetLastStatusCode() != http.StatusOK {
		return fmt.Errorf("set activation returned %d", s.tc.GetLastStatusCode())
	}
	return nil
}

func (s *rulesSteps) setApproval(ctx context.Context, action, name string) error {
	r, err := s.find(name)
	if err != nil {
		return err
	}
	body := map[string]any{"approved": action == "approve"}
	return s.tc.Send(http.MethodPatch, "/rules/"+r.ID+"/approval", body, s.auth())
}

func (s *rulesSteps) setApprovalWithoutAuth(ctx context.Context, action, name string) error {
	r, err := s.find(name)
	if err != nil {
		return err
	}
	body := map[string]any{"approved": action == "approve"}
	return s.tc.Send(http.MethodPatch, "/rules/"+r.ID+"/approval", body, nil)
}

func (s *rulesSteps) listRules(ctx context.Context) error {
	return s.tc.GET("/rules", nil)
}

func (s *rulesSteps) ruleListShouldContain(ctx context.Context, name string) error {
	var listing struct {
		Rules []rule `json:"rules"`
	}
	if err := s.tc.DecodeResponse(&listing); err != nil {
		return err
	}
	for _, r := range listing.Rules {
		if r.Name == name {
			return nil
		}
	}
	return fmt.Errorf("rule %q not listed", name)
}

package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"authsession/internal/policy/repository"
)

const twoFactorQuery = "data.authsession.two_factor.enforced"

// Default Rego policy: enforced when the platform requires it or the user enrolled any provider.
const defaultRegoPolicy = `package authsession.two_factor

default enforced := false

enforced if {
	input.platform.two_factor_enforced
}

enforced if {
	count(input.user.providers) > 0
}
`

// OPAEvaluator evaluates two-factor enforcement policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based policy evaluator. policyRepo may be nil,
// in which case only the default policy is used.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.evaluate(ctx, []string{defaultRegoPolicy}, buildInput(TwoFactorInput{}))
	return err
}

// TwoFactorEnforced evaluates the enabled policies, or the default policy when none are stored.
// Evaluation failures are logged and resolved by the fallback rule so a broken policy never
// lifts enforcement for enrolled users.
func (e *OPAEvaluator) TwoFactorEnforced(ctx context.Context, in TwoFactorInput) (bool, error) {
	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load enforcement policies: %v", err)
		}
		for _, p := range enabled {
			if p.Enabled && p.Rules != "" {
				policies = append(policies, p.Rules)
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	enforced, err := e.evaluate(ctx, policies, buildInput(in))
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using fallback", err)
		return fallback(in), nil
	}
	return enforced, nil
}

func buildInput(in TwoFactorInput) map[string]interface{} {
	providers := make([]interface{}, 0, len(in.Providers))
	for _, p := range in.Providers {
		providers = append(providers, p)
	}
	return map[string]interface{}{
		"user": map[string]interface{}{
			"id":         in.UserID,
			"login_name": in.LoginName,
			"providers":  providers,
		},
		"platform": map[string]interface{}{
			"two_factor_enforced": in.PlatformEnforced,
		},
	}
}

func (e *OPAEvaluator) evaluate(ctx context.Context, policies []string, input map[string]interface{}) (bool, error) {
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return false, fmt.Errorf("compile policies: %w", err)
	}
	q := rego.New(
		rego.Query(twoFactorQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval policies: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy query returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, nil
}

func fallback(in TwoFactorInput) bool {
	return in.PlatformEnforced || len(in.Providers) > 0
}

package dynamic

import (
	"errors"
	"fmt"

	"creditflow/internal/rules/models"
	dErrors "creditflow/pkg/domain-errors"
)

// ErrUnsupportedRuleType is returned when a definition names a kind the
// factory cannot build, or its parameters do not belong to that kind.
var ErrUnsupportedRuleType = errors.New("unsupported rule type")

// Build converts a definition into an executable rule. It holds no state;
// two calls with the same definition yield independent rules.
func Build(def *models.Definition) (Rule, error) {
	if def == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "rule definition is nil")
	}
	b := base{name: def.Name, description: def.Description, approved: def.Approved}

	switch def.Kind {
	case models.KindIncomeCommitment:
		p, ok := def.Params.(models.IncomeCommitmentParams)
		if !ok {
			return nil, mismatch(def)
		}
		return IncomeCommitment{base: b, params: p}, nil
	case models.KindMaxAmount:
		p, ok := def.Params.(models.MaxAmountParams)
		if !ok {
			return nil, mismatch(def)
		}
		return MaxAmount{base: b, params: p}, nil
	case models.KindConditionalScore:
		p, ok := def.Params.(models.ConditionalScoreParams)
		if !ok {
			return nil, mismatch(def)
		}
		if !p.Condition.IsValid() {
			return nil, dErrors.Wrap(ErrUnsupportedRuleType, dErrors.CodeConfiguration,
				fmt.Sprintf("rule %q has unknown condition %q", def.Name, p.Condition))
		}
		return ConditionalScore{base: b, params: p}, nil
	case models.KindMinTerm:
		p, ok := def.Params.(models.MinTermParams)
		if !ok {
			return nil, mismatch(def)
		}
		return MinTerm{base: b, params: p}, nil
	default:
		return nil, dErrors.Wrap(ErrUnsupportedRuleType, dErrors.CodeConfiguration,
			fmt.Sprintf("rule %q has unsupported type %q", def.Name, def.Kind))
	}
}

func mismatch(def *models.Definition) error {
	return dErrors.Wrap(ErrUnsupportedRuleType, dErrors.CodeConfiguration,
		fmt.Sprintf("rule %q parameters do not match type %q", def.Name, def.Kind))
}

package settlement

import (
	"context"

	"github.com/Temutjin2k/trip-dispatch/internal/domain/models"
)

// GlobalCommissionPercent is the last-resort platform commission applied
// when neither the fare rule nor the company configures one.
const GlobalCommissionPercent = 10.00

// commission is one resolved commission outcome. Explicit value wins over
// percentage when both are present on the same rule.
type commission struct {
	Percent float64
	Value   *float64
}

// commissionResolver tries one source of commission configuration.
// The first resolver returning ok wins.
type commissionResolver func(ctx context.Context, rule *models.FareRule, company *models.Company) (commission, bool)

// resolverChain is the precedence order: explicit rule value, rule percent,
// company default percent, global fallback. The chain is evaluated at
// completion time so that later configuration changes never touch a trip
// that already settled.
var resolverChain = []commissionResolver{
	ruleExplicitValue,
	rulePercent,
	companyDefault,
	globalFallback,
}

func ruleExplicitValue(_ context.Context, rule *models.FareRule, _ *models.Company) (commission, bool) {
	if rule == nil || rule.CommissionValue == nil {
		return commission{}, false
	}
	return commission{Value: rule.CommissionValue}, true
}

func rulePercent(_ context.Context, rule *models.FareRule, _ *models.Company) (commission, bool) {
	if rule == nil || rule.CommissionPercent == nil {
		return commission{}, false
	}
	return commission{Percent: *rule.CommissionPercent}, true
}

func companyDefault(_ context.Context, _ *models.FareRule, company *models.Company) (commission, bool) {
	if company == nil || company.DefaultCommissionPercent == nil {
		return commission{}, false
	}
	return commission{Percent: *company.DefaultCommissionPercent}, true
}

func globalFallback(_ context.Context, _ *models.FareRule, _ *models.Company) (commission, bool) {
	return commission{Percent: GlobalCommissionPercent}, true
}

// resolveCommission walks the chain and returns the first match. The global
// fallback always matches, so the result is never empty.
func resolveCommission(ctx context.Context, rule *models.FareRule, company *models.Company) commission {
	for _, resolve := range resolverChain {
		if c, ok := resolve(ctx, rule, company); ok {
			return c
		}
	}
	return commission{Percent: GlobalCommissionPercent}
}

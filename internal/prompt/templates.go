// File path: internal/prompt/templates.go
package prompt

import "fmt"

// Mode selects a report type. Unknown values are tolerated everywhere in
// this package and resolve to the default template; validating mode
// strings is the report router's job, not the registry's.
type Mode string

const (
	// ModeChannels recommends marketing channels for the primary
	// customer segments.
	ModeChannels Mode = "v1"
	// ModeRetention proposes revisit-rate improvement strategies.
	ModeRetention Mode = "v2"
	// ModeDiagnosis surfaces the top problems and fixes.
	ModeDiagnosis Mode = "v3"
	// ModeDefault is the fallback for unregistered modes.
	ModeDefault Mode = "default"
)

const citationRule = `Writing rules:
- Every claim must cite its source record from the context, in the form "(source: store code or segment name)".
- Only use evidence present in the context blocks above; do not invent data.`

type templateFunc func(storeCode, context string) string

var templates = map[Mode]templateFunc{
	ModeChannels: func(storeCode, context string) string {
		return fmt.Sprintf(`The following is customer-analysis and marketing data from stores similar to '%s'.
Write a marketing report for the owner based on it.

%s

Instructions:
1. Store summary - customer mix, purchase patterns, trade-area traits.
2. Strategies to strengthen the primary customer segments.
3. Propose new target segments drawn from the similar-store customer analyses.
4. For each target, a labeled recommendation with [channel], [message], [execution] and [evidence] sections.
5. Conclusion - which channel is most effective relative to cost.

%s`, storeCode, context, citationRule)
	},
	ModeRetention: func(storeCode, context string) string {
		return fmt.Sprintf(`The following is revisit-rate analysis data for '%s' and retention cases from similar stores.
Write a revisit-rate improvement report based on it.

%s

Instructions:
1. Current retention status with figures and the comparison baseline.
2. At least three factors behind the current revisit rate, each with evidence.
3. Short-term (coupons, events, push), medium-term (membership, visit-cycle optimization) and long-term (loyalty community) retention strategies.
4. Expected effect of each strategy, citing similar-store outcomes.

%s`, storeCode, context, citationRule)
	},
	ModeDiagnosis: func(storeCode, context string) string {
		return fmt.Sprintf(`The following is franchise-restaurant data from stores similar to '%s'.
Identify the store's biggest problems and the marketing ideas to fix them.

%s

Instructions:
1. The top 3 problems, each with its evidence from the data.
2. Root-cause analysis linking each problem to customers, trade area or trends.
3. A concrete fix per problem (online and offline), referencing improvements that worked at similar stores.
4. Conclusion - which fix to attempt first and why.

%s`, storeCode, context, citationRule)
	},
	ModeDefault: func(storeCode, context string) string {
		return fmt.Sprintf(`The following is data from stores similar to '%s'.
Write a marketing report based on it.

%s

Instructions:
1. Store summary.
2. Data-driven insights.
3. Main problems and causes.
4. Improvement strategies.
5. Conclusion.

%s`, storeCode, context, citationRule)
	},
}

// Render interpolates the merchant code and assembled context into the
// template registered for mode. Unregistered modes render the default
// template; Render never fails.
func Render(mode Mode, storeCode, context string) string {
	tmpl, ok := templates[mode]
	if !ok {
		tmpl = templates[ModeDefault]
	}
	return tmpl(storeCode, context)
}

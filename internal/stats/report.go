// File path: internal/stats/report.go
package stats

import (
	"context"
	"fmt"

	"github.com/jbpark-dev/storesense/internal/common"
)

// BaseReport is the statistics-backed portion of a store report. It is
// produced without any model call and merged into the final payload
// alongside the generated narrative.
type BaseReport struct {
	StoreCode       string         `json:"store_code"`
	StoreName       string         `json:"store_name"`
	Industry        string         `json:"industry,omitempty"`
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	RevisitRate     float64        `json:"revisit_rate"`
	Analysis        map[string]any `json:"analysis,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// baseSolutions maps each diagnosed problem type to its default
// countermeasure. Unlisted problems fall back to a custom-strategy note.
var baseSolutions = map[string]string{
	"low revisit rate":             "introduce a coupon or stamp program to build loyal customers",
	"weak new-customer inflow":     "run delivery-app discounts or a first-visit event targeting new customers",
	"falling average ticket":       "develop set menus or premium options to lift perceived value",
	"declining loyalty":            "offer regulars exclusive perks or a return-visit thank-you promotion",
	"high revenue volatility":      "plan a lunch subscription or recurring events to stabilize sales",
	"worsening customer churn":     "open a feedback channel and run a service-satisfaction campaign",
	"intensifying competition":     "develop a signature menu that sets the store apart from rivals",
	"over-reliance on foot traffic": "strengthen local marketing toward nearby residents and office workers",
	"poor delivery efficiency":     "build a delivery-only menu or adjust the minimum order amount",
	"customer-base concentration":  "run targeted promotions to draw in new demographics",
	"shrinking revenue":            "launch peak-time set menus or push delivery to grow sales",
	"falling visit frequency":      "add a mileage program or day-of-week events to prompt return visits",
}

const fallbackSolution = "develop a tailored strategy for this problem"

// BaseSolution returns the default countermeasure for a problem type.
func BaseSolution(problem string) string {
	if s, ok := baseSolutions[problem]; ok {
		return s
	}
	return fallbackSolution
}

// Reporter builds statistics-only baseline reports per analysis mode.
type Reporter struct {
	store *Store
}

func NewReporter(store *Store) *Reporter {
	return &Reporter{store: store}
}

// Generate routes a store code through the mode's baseline report. An
// unknown merchant surfaces ErrUnknownMerchant; an unknown mode falls
// back to the channel report.
func (r *Reporter) Generate(ctx context.Context, storeCode, mode string) (*BaseReport, error) {
	merchant, err := r.store.Merchant(ctx, storeCode)
	if err != nil {
		return nil, err
	}
	switch mode {
	case "v2":
		return r.retentionReport(ctx, merchant)
	case "v3":
		return r.diagnosisReport(ctx, merchant)
	case "v1":
		return r.channelReport(ctx, merchant)
	default:
		common.Logger().Warn("stats: unknown mode, using channel report", "mode", mode)
		return r.channelReport(ctx, merchant)
	}
}

// channelReport summarizes who visits the store and through which
// channels, against the cluster benchmark.
func (r *Reporter) channelReport(ctx context.Context, m *Merchant) (*BaseReport, error) {
	segments, err := r.store.Segments(ctx, m.StoreCode)
	if err != nil {
		return nil, err
	}
	visits, err := r.store.VisitMix(ctx, m.StoreCode)
	if err != nil {
		return nil, err
	}
	analysis := map[string]any{
		"persona":   m.Persona,
		"segments":  segments,
		"visit_mix": visits,
	}
	var recs []string
	for _, seg := range segments {
		if len(recs) >= 3 {
			break
		}
		recs = append(recs, fmt.Sprintf("grow the %s segment (share %s, gap to peers %s)",
			seg.Segment, seg.StoreValue, seg.Gap))
	}
	return &BaseReport{
		StoreCode:       m.StoreCode,
		StoreName:       m.StoreName,
		Industry:        m.Industry,
		Status:          statusForRate(m.RevisitRate),
		Message:         fmt.Sprintf("%s serves a %s customer base in %s.", m.StoreName, m.Persona, m.TradeArea),
		RevisitRate:     m.RevisitRate,
		Analysis:        analysis,
		Recommendations: recs,
	}, nil
}

// retentionReport grades the revisit rate against the 30% bar the
// product treats as healthy.
func (r *Reporter) retentionReport(ctx context.Context, m *Merchant) (*BaseReport, error) {
	status := statusForRate(m.RevisitRate)
	var message string
	var recs []string
	switch {
	case m.RevisitRate >= 40:
		message = fmt.Sprintf("Revisit rate is %.1f%%. The regular base is very solid.", m.RevisitRate)
		recs = []string{"maintain the current loyalty program and monitor for drift"}
	case m.RevisitRate >= 30:
		message = fmt.Sprintf("Revisit rate is %.1f%%, at or above the 30%% healthy bar.", m.RevisitRate)
		recs = []string{"keep regulars engaged with periodic thank-you promotions"}
	default:
		message = fmt.Sprintf("Revisit rate is %.1f%%, below the 30%% bar. Retention needs work.", m.RevisitRate)
		recs = []string{
			BaseSolution("low revisit rate"),
			BaseSolution("falling visit frequency"),
		}
	}
	return &BaseReport{
		StoreCode:       m.StoreCode,
		StoreName:       m.StoreName,
		Industry:        m.Industry,
		Status:          status,
		Message:         message,
		RevisitRate:     m.RevisitRate,
		Analysis:        map[string]any{"loyalty": m.LoyaltySummary},
		Recommendations: recs,
	}, nil
}

// diagnosisReport surfaces the top ranked weaknesses with their default
// countermeasures.
func (r *Reporter) diagnosisReport(ctx context.Context, m *Merchant) (*BaseReport, error) {
	diagnoses, err := r.store.Diagnoses(ctx, m.StoreCode)
	if err != nil {
		return nil, err
	}
	if len(diagnoses) > 3 {
		diagnoses = diagnoses[:3]
	}
	issues := make([]map[string]any, 0, len(diagnoses))
	recs := make([]string, 0, len(diagnoses))
	for _, d := range diagnoses {
		issues = append(issues, map[string]any{
			"rank":     d.Rank,
			"weakness": d.Weakness,
			"severity": d.Severity,
		})
		recs = append(recs, fmt.Sprintf("%s: %s", d.Weakness, BaseSolution(d.Weakness)))
	}
	message := fmt.Sprintf("%d priority issues identified for %s.", len(diagnoses), m.StoreName)
	if len(diagnoses) == 0 {
		message = fmt.Sprintf("No outstanding issues identified for %s.", m.StoreName)
	}
	return &BaseReport{
		StoreCode:       m.StoreCode,
		StoreName:       m.StoreName,
		Industry:        m.Industry,
		Status:          statusForRate(m.RevisitRate),
		Message:         message,
		RevisitRate:     m.RevisitRate,
		Analysis:        map[string]any{"issues": issues},
		Recommendations: recs,
	}, nil
}

func statusForRate(rate float64) string {
	switch {
	case rate >= 40:
		return "strong"
	case rate >= 30:
		return "stable"
	default:
		return "needs attention"
	}
}

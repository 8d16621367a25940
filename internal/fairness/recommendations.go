package fairness

import (
	"fmt"
	"strings"
)

type template struct {
	finding string
	remedy  string
}

// Findings take the metric value, the comparison, then the threshold.
var templates = [numMetricKinds]template{
	MetricDemographicParityDifference: {
		finding: "Selection rates differ by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Review the selection criteria applied to %s and consider blind screening of early-stage applications.",
	},
	MetricDemographicParityRatio: {
		finding: "The demographic parity ratio is %.3f for %s, below the %.2f floor.",
		remedy:  "Audit shortlisting steps where %s drop out and standardize the criteria used at each stage.",
	},
	MetricDisparateImpact: {
		finding: "Disparate impact is %.3f for %s, below the %.2f four-fifths rule.",
		remedy:  "Review selection criteria for %s, remove requirements not tied to job performance and consider blind screening.",
	},
	MetricEqualOpportunityDifference: {
		finding: "Qualified candidates are selected at rates differing by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Check whether qualified members of %s are screened out by proxies such as school or employment gaps and use structured interviews.",
	},
	MetricAverageOddsDifference: {
		finding: "True and false positive rates differ on average by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Re-examine how evaluators score %s and calibrate interview rubrics across panels.",
	},
	MetricPredictiveParityDifference: {
		finding: "Precision of positive decisions differs by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Validate that a positive decision means the same for %s by reviewing post-hire outcomes per group.",
	},
	MetricFalsePositiveRateDifference: {
		finding: "False positive rates differ by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Review how unqualified candidates in %s pass screening and tighten evidence requirements uniformly.",
	},
	MetricFalseNegativeRateDifference: {
		finding: "False negative rates differ by %.3f between %s, above the %.2f tolerance.",
		remedy:  "Review rejected but qualified candidates in %s and add a second-reviewer step for borderline decisions.",
	},
	MetricTheilIndex: {
		finding: "Outcome inequality (Theil index) is %.3f across %s, above the %.2f tolerance.",
		remedy:  "Investigate which decision stage concentrates favorable outcomes and apply consistent scoring rules to %s.",
	},
}

const (
	noViolationsMessage = "No fairness violations detected under the %q threshold profile. Continue monitoring each hiring cycle."
	groundTruthMessage  = "Ground-truth outcomes were not supplied, so outcome-based metrics could not be evaluated. Record whether selected and rejected candidates were qualified to enable them."
)

// RecommendationGenerator renders one suggestion per violation from fixed templates.
type RecommendationGenerator struct {
	profile string
}

// NewRecommendationGenerator names the profile quoted when no violation exists.
func NewRecommendationGenerator(profile string) RecommendationGenerator {
	return RecommendationGenerator{profile: profile}
}

// Generate is deterministic in the order of det.Violations.
func (g RecommendationGenerator) Generate(det Detection) []string {
	out := make([]string, 0, len(det.Violations)+1)
	for _, v := range det.Violations {
		out = append(out, render(v))
	}
	if len(det.Violations) == 0 {
		out = append(out, fmt.Sprintf(noViolationsMessage, g.profile))
	}
	for _, w := range det.Unavailable {
		if w.Reason == ReasonGroundTruthUnavailable {
			out = append(out, groundTruthMessage)
			break
		}
	}
	return out
}

func render(v Violation) string {
	who := describeGroups(v.AffectedGroups)
	kind, core := v.Kind()
	if !core {
		return fmt.Sprintf("[%s] Custom metric %q is %.3f for %s against a threshold of %.2f. Review the decision stage this metric monitors for %s.",
			v.Severity, v.Metric, v.Value, who, v.Threshold, who)
	}
	t := templates[kind]
	finding := fmt.Sprintf(t.finding, v.Value, who, v.Threshold)
	remedy := fmt.Sprintf(t.remedy, who)
	return fmt.Sprintf("[%s] %s %s", v.Severity, finding, remedy)
}

func describeGroups(groups []string) string {
	switch len(groups) {
	case 0:
		return "all groups"
	case 1:
		return "group " + groups[0]
	case 2:
		return "groups " + groups[0] + " and " + groups[1]
	}
	return "groups " + strings.Join(groups[:len(groups)-1], ", ") + " and " + groups[len(groups)-1]
}

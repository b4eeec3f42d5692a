package usecase

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const factDeviation = 0.2

var numericFact = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(meters|m|°C|bar|kg/m³|tons|ft|in)?`)

type UnitFact struct {
	Unit   string    `json:"unit"`
	Values []float64 `json:"values"`
	Mean   float64   `json:"mean"`
	Median float64   `json:"median"`
}

type FactReport struct {
	Facts  []UnitFact `json:"facts"`
	Issues []string   `json:"issues,omitempty"`
}

// CrossCheckFacts groups the numbers of several answers by unit and flags values
// deviating more than 20% from their group mean.
func CrossCheckFacts(answers []string) FactReport {
	groups := make(map[string][]float64)
	var order []string
	for _, answer := range answers {
		for _, m := range numericFact.FindAllStringSubmatch(answer, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			unit := strings.ToLower(m[2])
			if unit == "" {
				unit = "number"
			}
			if _, ok := groups[unit]; !ok {
				order = append(order, unit)
			}
			groups[unit] = append(groups[unit], v)
		}
	}

	var report FactReport
	for _, unit := range order {
		values := groups[unit]
		fact := UnitFact{Unit: unit, Values: values, Mean: mean(values), Median: median(values)}
		for _, v := range values {
			if fact.Mean != 0 && math.Abs(v-fact.Mean)/fact.Mean > factDeviation {
				report.Issues = append(report.Issues,
					fmt.Sprintf("Fact anomaly: %g %s deviates from mean %.2f %s", v, unit, fact.Mean, unit))
			}
		}
		report.Facts = append(report.Facts, fact)
	}
	return report
}

func (r FactReport) String() string {
	var b strings.Builder
	b.WriteString("Fact Checking Report:\n")
	if len(r.Issues) > 0 {
		b.WriteString("Issues detected:\n")
		b.WriteString(strings.Join(r.Issues, "\n"))
		b.WriteString("\n")
	} else {
		b.WriteString("No fact anomalies detected.\n")
	}
	b.WriteString("Final verified facts:\n")
	lines := make([]string, 0, len(r.Facts))
	for _, f := range r.Facts {
		lines = append(lines, fmt.Sprintf("Verified median %s: %g", f.Unit, f.Median))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

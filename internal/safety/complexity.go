package safety

import (
	"fmt"
	"strings"
)

type Complexity struct {
	Score         int      `json:"score"`
	JoinCount     int      `json:"join_count"`
	SubqueryCount int      `json:"subquery_count"`
	Factors       []string `json:"factors"`
	Warnings      []string `json:"warnings"`
}

var aggregateMarkers = []string{"COUNT", "SUM", "AVG", "MIN", "MAX", "GROUP BY"}

const (
	highComplexityScore = 7
	maxJoinsBeforeWarn  = 3
)

// EstimateComplexity scores sql by counting JOINs, nested SELECTs and aggregates.
func EstimateComplexity(sql string) Complexity {
	upper := strings.ToUpper(sql)
	result := Complexity{Score: 1, Factors: []string{}, Warnings: []string{}}

	result.JoinCount = strings.Count(upper, "JOIN")
	if result.JoinCount > 0 {
		result.Score += result.JoinCount * 2
		result.Factors = append(result.Factors, fmt.Sprintf("%d JOIN operations", result.JoinCount))
	}

	if subqueries := strings.Count(upper, "SELECT") - 1; subqueries > 0 {
		result.SubqueryCount = subqueries
		result.Score += subqueries * 3
		result.Factors = append(result.Factors, fmt.Sprintf("%d subqueries", subqueries))
	}

	aggregates := 0
	for _, marker := range aggregateMarkers {
		if strings.Contains(upper, marker) {
			aggregates++
		}
	}
	if aggregates > 0 {
		result.Score += aggregates
		result.Factors = append(result.Factors, fmt.Sprintf("%d aggregation functions", aggregates))
	}

	if result.Score > highComplexityScore {
		result.Warnings = append(result.Warnings, "High complexity query - may impact performance")
	}
	if result.JoinCount > maxJoinsBeforeWarn {
		result.Warnings = append(result.Warnings, "Multiple JOINs detected - consider query optimization")
	}
	return result
}

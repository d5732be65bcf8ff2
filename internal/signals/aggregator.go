package signals

import (
	"sort"
	"time"

	"github.com/matthewbaird/lawoffice/internal/types"
)

// CategorySummary aggregates entries within a single category.
type CategorySummary struct {
	Category         string         `json:"category"`
	Count            int            `json:"count"`
	ByWeight         map[string]int `json:"by_weight"`
	ByPolarity       map[string]int `json:"by_polarity"`
	DominantPolarity string         `json:"dominant_polarity"`
	Trend            string         `json:"trend"` // improving, stable, declining
}

// Summary is the rolled-up view of one entity's activity.
type Summary struct {
	EntityType       string                     `json:"entity_type"`
	EntityID         string                     `json:"entity_id"`
	Since            time.Time                  `json:"since"`
	Until            time.Time                  `json:"until"`
	Categories       map[string]CategorySummary `json:"categories"`
	OverallSentiment string                     `json:"overall_sentiment"` // positive, mixed, concerning, critical
	SentimentReason  string                     `json:"sentiment_reason"`
	Escalations      []Escalation               `json:"escalations"`
}

// Aggregate summarizes entries in [since, until] and evaluates rules with
// until as the end of every rule window.
func Aggregate(entries []types.ActivityEntry, entityType, entityID string, since, until time.Time, rules []Rule) Summary {
	categories := make(map[string]*CategorySummary)
	for _, entry := range entries {
		cs, ok := categories[entry.Category]
		if !ok {
			cs = &CategorySummary{
				Category:   entry.Category,
				ByWeight:   make(map[string]int),
				ByPolarity: make(map[string]int),
			}
			categories[entry.Category] = cs
		}
		cs.Count++
		cs.ByWeight[entry.Weight]++
		cs.ByPolarity[entry.Polarity]++
	}

	result := make(map[string]CategorySummary, len(categories))
	for cat, cs := range categories {
		cs.DominantPolarity = dominantPolarity(cs.ByPolarity)
		cs.Trend = computeTrend(entries, cat, since, until)
		result[cat] = *cs
	}

	escalations := Evaluate(entries, rules, until)
	sentiment, reason := computeSentiment(result, escalations)

	return Summary{
		EntityType:       entityType,
		EntityID:         entityID,
		Since:            since,
		Until:            until,
		Categories:       result,
		OverallSentiment: sentiment,
		SentimentReason:  reason,
		Escalations:      escalations,
	}
}

// Evaluate returns every rule that fires against entries as of now.
func Evaluate(entries []types.ActivityEntry, rules []Rule, now time.Time) []Escalation {
	escalated := []Escalation{}
	for _, rule := range rules {
		windowStart := now.AddDate(0, 0, -rule.WithinDays)
		var window []types.ActivityEntry
		for _, e := range entries {
			if !e.OccurredAt.Before(windowStart) && !e.OccurredAt.After(now) {
				window = append(window, e)
			}
		}

		var (
			es Escalation
			ok bool
		)
		switch rule.TriggerType {
		case "count":
			es, ok = evaluateCount(rule, window)
		case "cross_category":
			es, ok = evaluateCrossCategory(rule, window)
		}
		if ok {
			escalated = append(escalated, es)
		}
	}
	return escalated
}

func evaluateCount(rule Rule, window []types.ActivityEntry) (Escalation, bool) {
	var matching []types.ActivityEntry
	for _, e := range window {
		if rule.EventType != "" && e.EventType != rule.EventType {
			continue
		}
		if rule.Category != "" && e.Category != rule.Category {
			continue
		}
		if rule.Polarity != "" && e.Polarity != rule.Polarity {
			continue
		}
		matching = append(matching, e)
	}
	if len(matching) == 0 || len(matching) < rule.Count {
		return Escalation{}, false
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].OccurredAt.Before(matching[j].OccurredAt)
	})
	return Escalation{
		Rule:             rule,
		TriggeringCount:  len(matching),
		EarliestOccurred: matching[0].OccurredAt,
		LatestOccurred:   matching[len(matching)-1].OccurredAt,
	}, true
}

func evaluateCrossCategory(rule Rule, window []types.ActivityEntry) (Escalation, bool) {
	counts := make(map[int]int)
	var earliest, latest time.Time
	for _, e := range window {
		for i, req := range rule.Requires {
			if e.Category != req.Category || (req.Polarity != "" && e.Polarity != req.Polarity) {
				continue
			}
			counts[i]++
			if earliest.IsZero() || e.OccurredAt.Before(earliest) {
				earliest = e.OccurredAt
			}
			if e.OccurredAt.After(latest) {
				latest = e.OccurredAt
			}
		}
	}

	total := 0
	for i, req := range rule.Requires {
		if counts[i] < req.MinCount {
			return Escalation{}, false
		}
		total += counts[i]
	}
	if total == 0 {
		return Escalation{}, false
	}
	return Escalation{
		Rule:             rule,
		TriggeringCount:  total,
		EarliestOccurred: earliest,
		LatestOccurred:   latest,
	}, true
}

// dominantPolarity returns the most frequent polarity. Ties go to the
// alphabetically first so the result is stable.
func dominantPolarity(byPolarity map[string]int) string {
	best, bestCount := "", 0
	for p, c := range byPolarity {
		if c > bestCount || (c == bestCount && p < best) {
			best, bestCount = p, c
		}
	}
	return best
}

// computeTrend compares volume in the first and second half of the window.
// For a ledger, more activity in a category means more churn.
func computeTrend(entries []types.ActivityEntry, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var firstHalf, secondHalf int
	for _, e := range entries {
		if e.Category != category {
			continue
		}
		if e.OccurredAt.Before(mid) {
			firstHalf++
		} else {
			secondHalf++
		}
	}
	switch {
	case secondHalf > firstHalf+1:
		return "declining"
	case firstHalf > secondHalf+1:
		return "improving"
	}
	return "stable"
}

func computeSentiment(categories map[string]CategorySummary, escalations []Escalation) (string, string) {
	for _, e := range escalations {
		if e.Rule.Weight == "critical" {
			return "critical", "Critical escalation triggered: " + e.Rule.Description
		}
	}

	var criticalCount, majorCount, negativeCount, positiveCount int
	for _, cs := range categories {
		criticalCount += cs.ByWeight["critical"]
		majorCount += cs.ByWeight["major"]
		negativeCount += cs.ByPolarity["negative"]
		positiveCount += cs.ByPolarity["positive"]
	}

	switch {
	case criticalCount > 0:
		return "critical", "Critical-weight activity present requiring immediate attention."
	case len(escalations) > 0 || majorCount >= 2 || negativeCount > positiveCount*2:
		return "concerning", "Escalations, multiple major events or predominantly negative activity."
	case negativeCount > positiveCount:
		return "mixed", "More negative than positive activity, but no critical concerns."
	}
	return "positive", "Activity is predominantly positive or neutral."
}

package rules

import (
	"sort"
	"strings"

	"github.com/cadrius/mailpipe/internal/models"
	"github.com/cadrius/mailpipe/internal/utils"
)

// SortRules orders rules by ascending priority, ties broken by name.
func SortRules(rules []*models.AutomationRule) []*models.AutomationRule {
	sorted := make([]*models.AutomationRule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil {
			sorted = append(sorted, rule)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// Match returns the first active rule whose conditions hold for the message, or nil.
func Match(message *models.EmailMessage, rules []*models.AutomationRule) *models.AutomationRule {
	if message == nil {
		return nil
	}
	for _, rule := range SortRules(rules) {
		if !rule.IsActive {
			continue
		}
		if Matches(rule, message.Subject, message.Sender) {
			return rule
		}
	}
	return nil
}

// Matches checks the subject and sender conditions. A blank condition matches anything.
func Matches(rule *models.AutomationRule, subject, sender string) bool {
	return conditionHolds(rule.SubjectContains, subject) && conditionHolds(rule.SenderContains, sender)
}

func conditionHolds(condition, value string) bool {
	if strings.TrimSpace(condition) == "" {
		return true
	}
	return utils.ContainsFold(value, condition)
}

package moderation

import (
	"context"
	"time"

	"langmod/server/backend/domain"
	"langmod/server/common/log"
)

// LedgerReader is the slice of the restriction store the engine needs.
// An empty chatID returns the user's records across all chats.
type LedgerReader interface {
	RestrictionHistory(ctx context.Context, userID int64, chatID string) ([]domain.RestrictionRecord, error)
}

// Verdict is one triggered rule together with the index it holds in the
// chat's rule list at evaluation time.
type Verdict struct {
	RuleIndex int
	Rule      domain.ModerationRule
}

type Engine struct {
	ledger LedgerReader
	now    func() time.Time
}

func NewEngine(ledger LedgerReader) *Engine {
	return &Engine{ledger: ledger, now: time.Now}
}

// Evaluate runs the chat's rules in order against one analyzed message.
// With stop_on_first_match set (the default) at most one verdict is
// returned; otherwise every triggered rule is returned in rule order.
func (e *Engine) Evaluate(ctx context.Context, userID int64, chatID string, analysis []domain.LanguageScore, settings domain.ChatSettings) []Verdict {
	var verdicts []Verdict
	for i, rule := range settings.ModerationRules {
		if e.ruleTriggers(ctx, userID, chatID, analysis, settings, rule) {
			verdicts = append(verdicts, Verdict{RuleIndex: i, Rule: rule})
			if settings.StopOnFirst() {
				break
			}
		}
	}
	return verdicts
}

func (e *Engine) ruleTriggers(ctx context.Context, userID int64, chatID string, analysis []domain.LanguageScore, settings domain.ChatSettings, rule domain.ModerationRule) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		met := e.conditionMet(ctx, userID, chatID, analysis, settings, cond)
		if rule.ConditionRelation == domain.RelationOr {
			if met {
				return true
			}
		} else if !met {
			return false
		}
	}
	return rule.ConditionRelation != domain.RelationOr
}

// conditionMet evaluates one condition. Evaluation errors (ledger read
// failure, unknown condition type) count as not met.
func (e *Engine) conditionMet(ctx context.Context, userID int64, chatID string, analysis []domain.LanguageScore, settings domain.ChatSettings, cond domain.RuleCondition) bool {
	switch cond.Type {
	case domain.ConditionLanguageConfidence:
		for _, score := range analysis {
			if score.Lang == cond.Values.Language && score.Prob >= cond.Values.Threshold {
				return true
			}
		}
		return false

	case domain.ConditionNotInAllowed:
		for _, score := range analysis {
			if !settings.IsLanguageAllowed(score.Lang) && score.Prob >= cond.Values.Threshold {
				return true
			}
		}
		return false

	case domain.ConditionRestrictionCount:
		records, ok := e.ledgerScope(ctx, userID, chatID, cond)
		if !ok {
			return false
		}
		count := 0
		for _, rec := range records {
			if cond.Values.MatchesType(rec.RestrictionType) {
				count++
			}
		}
		return count >= cond.Values.Count

	case domain.ConditionRestrictionTimeLength:
		records, ok := e.ledgerScope(ctx, userID, chatID, cond)
		if !ok {
			return false
		}
		cutoff := e.now().Add(-time.Duration(cond.Values.WindowHours * float64(time.Hour)))
		var total int64
		for _, rec := range records {
			// Entries exactly at the window boundary are included.
			if rec.Timestamp.Before(cutoff) {
				continue
			}
			if cond.Values.MatchesType(rec.RestrictionType) {
				total += rec.DurationSeconds
			}
		}
		return total >= cond.Values.Seconds

	default:
		log.Warnf("unknown rule condition type %q, treating as not met", cond.Type)
		return false
	}
}

func (e *Engine) ledgerScope(ctx context.Context, userID int64, chatID string, cond domain.RuleCondition) ([]domain.RestrictionRecord, bool) {
	scope := ""
	if cond.ThisChatOnly {
		scope = chatID
	}
	records, err := e.ledger.RestrictionHistory(ctx, userID, scope)
	if err != nil {
		log.Errorf("restriction history for user %d: %v", userID, err)
		return nil, false
	}
	return records, true
}

package domain

import "time"

type RestrictionType string
type ConditionRelation string
type RuleConditionType string

const (
	RestrictionWarning      RestrictionType = "warning"
	RestrictionTimeout      RestrictionType = "timeout"
	RestrictionTemporaryBan RestrictionType = "temporary_ban"
	RestrictionPermanentBan RestrictionType = "permanent_ban"
)

const (
	RelationAnd ConditionRelation = "and"
	RelationOr  ConditionRelation = "or"
)

const (
	ConditionLanguageConfidence    RuleConditionType = "language_confidence"
	ConditionNotInAllowed          RuleConditionType = "confidence_not_in_allowed"
	ConditionRestrictionCount      RuleConditionType = "previous_restriction_count"
	ConditionRestrictionTimeLength RuleConditionType = "previous_restriction_time_length"
)

// AnyRestrictionType matches every ledger entry when used inside
// ConditionValues.RestrictionTypes.
const AnyRestrictionType = "any"

// LanguageScore is one entry of an analysis result. Probability is in
// [0, 1] and entries are kept sorted by descending probability.
type LanguageScore struct {
	Lang string  `json:"lang"`
	Prob float64 `json:"prob"`
}

// ChatMessage is one recorded message. AnalysisResult is nil until the
// worker completes; attaching it is the only update a message ever sees.
// Timestamps are ISO strings and compared lexically.
type ChatMessage struct {
	ChatID         string          `json:"chat_id"`
	MessageID      string          `json:"message_id"`
	Content        string          `json:"content"`
	Timestamp      string          `json:"timestamp"`
	AnalysisResult []LanguageScore `json:"analysis_result,omitempty"`
}

// TopLanguage returns the highest-probability entry, if any.
func (m ChatMessage) TopLanguage() (LanguageScore, bool) {
	if len(m.AnalysisResult) == 0 {
		return LanguageScore{}, false
	}
	return m.AnalysisResult[0], true
}

type User struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
	// ChatHistory maps chat_id to that chat's messages in append order.
	ChatHistory        map[string][]ChatMessage `json:"chat_history"`
	RestrictionHistory []RestrictionRecord      `json:"restriction_history"`
}

type Chat struct {
	ChatID        string              `json:"chat_id"`
	LastKnownName string              `json:"last_known_name"`
	Users         []int64             `json:"users"`
	Admins        map[string][]string `json:"admins"`
	ChatSettings  ChatSettings        `json:"chat_settings"`
}

type ChatSettings struct {
	AllowedLanguages            []string         `json:"allowed_languages"`
	AnalysisFrequency           float64          `json:"analysis_frequency"`
	MinMessageLengthForAnalysis int              `json:"min_message_length_for_analysis"`
	MaxMessageLengthForAnalysis int              `json:"max_message_length_for_analysis"`
	NewMembersMinAnalyzed       int              `json:"new_members_min_analyzed_messages"`
	StopOnFirstMatch            *bool            `json:"stop_on_first_match,omitempty"`
	ModerationRules             []ModerationRule `json:"moderation_rules"`
}

// StopOnFirst reports whether rule evaluation stops at the first
// triggered rule. Defaults to true when the flag is unset.
func (s ChatSettings) StopOnFirst() bool {
	if s.StopOnFirstMatch == nil {
		return true
	}
	return *s.StopOnFirstMatch
}

// IsLanguageAllowed reports whether lang is in the chat's allow list.
func (s ChatSettings) IsLanguageAllowed(lang string) bool {
	for _, allowed := range s.AllowedLanguages {
		if allowed == lang {
			return true
		}
	}
	return false
}

func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		AllowedLanguages:            []string{"en"},
		AnalysisFrequency:           0.3,
		MinMessageLengthForAnalysis: 10,
		MaxMessageLengthForAnalysis: 1000,
		NewMembersMinAnalyzed:       5,
	}
}

type ModerationRule struct {
	Name              string            `json:"name"`
	Message           string            `json:"message"`
	Conditions        []RuleCondition   `json:"conditions"`
	ConditionRelation ConditionRelation `json:"condition_relation"`
	Restriction       Restriction       `json:"restriction"`
	NotifyUser        bool              `json:"notify_user"`
}

type RuleCondition struct {
	Type         RuleConditionType `json:"type"`
	Values       ConditionValues   `json:"values"`
	ThisChatOnly bool              `json:"this_chat_only"`
}

// ConditionValues carries the parameters for every condition type; only
// the fields relevant to the condition's Type are consulted.
type ConditionValues struct {
	Language         string   `json:"language,omitempty"`
	Threshold        float64  `json:"threshold,omitempty"`
	RestrictionTypes []string `json:"restriction_types,omitempty"`
	Count            int      `json:"count,omitempty"`
	Seconds          int64    `json:"seconds,omitempty"`
	WindowHours      float64  `json:"window_hours,omitempty"`
}

// MatchesType reports whether a ledger entry of the given type counts
// for this condition's restriction-type filter.
func (v ConditionValues) MatchesType(t RestrictionType) bool {
	for _, want := range v.RestrictionTypes {
		if want == AnyRestrictionType || want == string(t) {
			return true
		}
	}
	return false
}

type Restriction struct {
	RestrictionType RestrictionType `json:"restriction_type"`
	Justification   string          `json:"justification,omitempty"`
	DurationSeconds int64           `json:"duration_seconds,omitempty"`
}

// RestrictionRecord is one ledger entry. Entries are append-only and
// never mutated; RuleIndex refers to the rule in effect when it fired,
// regardless of later rule edits.
type RestrictionRecord struct {
	UserID          int64           `json:"user_id"`
	ChatID          string          `json:"chat_id"`
	MessageID       string          `json:"message_id"`
	MessageText     string          `json:"message_text"`
	RestrictionType RestrictionType `json:"restriction_type"`
	RuleIndex       int             `json:"rule_index"`
	Timestamp       time.Time       `json:"timestamp"`
	DurationSeconds int64           `json:"duration_seconds,omitempty"`
}

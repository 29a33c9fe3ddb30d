package service

import (
	"math/rand"
	"unicode/utf8"

	"langmod/server/backend/domain"
)

// AdmissionPolicy decides whether an inbound chat message is forwarded
// for analysis. Length bounds gate everything; new members (fewer
// analyzed messages than the chat's threshold) are always analyzed,
// established members are sampled at the chat's analysis frequency.
type AdmissionPolicy struct {
	sample func() float64
}

func NewAdmissionPolicy() *AdmissionPolicy {
	return &AdmissionPolicy{sample: rand.Float64}
}

func (p *AdmissionPolicy) ShouldAnalyze(settings domain.ChatSettings, priorAnalyzed int, content string) bool {
	length := utf8.RuneCountInString(content)
	if length < settings.MinMessageLengthForAnalysis || length > settings.MaxMessageLengthForAnalysis {
		return false
	}
	if priorAnalyzed < settings.NewMembersMinAnalyzed {
		return true
	}
	return p.sample() <= settings.AnalysisFrequency
}

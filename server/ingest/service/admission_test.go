package service

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"langmod/server/backend/domain"
)

func policyReturning(value float64) *AdmissionPolicy {
	return &AdmissionPolicy{sample: func() float64 { return value }}
}

func admissionSettings() domain.ChatSettings {
	return domain.ChatSettings{
		AnalysisFrequency:           0.3,
		MinMessageLengthForAnalysis: 10,
		MaxMessageLengthForAnalysis: 100,
		NewMembersMinAnalyzed:       5,
	}
}

func TestLengthBoundsGateEverything(t *testing.T) {
	settings := admissionSettings()
	// Sampler always admits, member is new: only length can refuse.
	policy := policyReturning(0.0)

	if policy.ShouldAnalyze(settings, 0, "short") {
		t.Errorf("below min length must never analyze")
	}
	if policy.ShouldAnalyze(settings, 0, strings.Repeat("x", 101)) {
		t.Errorf("above max length must never analyze")
	}
	if !policy.ShouldAnalyze(settings, 0, strings.Repeat("x", 10)) {
		t.Errorf("min length is inclusive")
	}
	if !policy.ShouldAnalyze(settings, 0, strings.Repeat("x", 100)) {
		t.Errorf("max length is inclusive")
	}
}

func TestLengthCountsRunesNotBytes(t *testing.T) {
	settings := admissionSettings()
	policy := policyReturning(0.0)

	// 10 Cyrillic characters, 20 bytes: inside the rune bounds.
	if !policy.ShouldAnalyze(settings, 0, strings.Repeat("п", 10)) {
		t.Errorf("length must count runes, not bytes")
	}
}

func TestNewMembersAlwaysAnalyzed(t *testing.T) {
	settings := admissionSettings()
	// Sampler always refuses; only the new-member rule can admit.
	policy := policyReturning(1.0)

	if !policy.ShouldAnalyze(settings, 4, strings.Repeat("x", 20)) {
		t.Errorf("a member below the analyzed-message threshold skips sampling")
	}
	if policy.ShouldAnalyze(settings, 5, strings.Repeat("x", 20)) {
		t.Errorf("at the threshold the sampler decides")
	}
}

func TestEstablishedMembersSampled(t *testing.T) {
	settings := admissionSettings()

	if !policyReturning(0.29).ShouldAnalyze(settings, 10, strings.Repeat("x", 20)) {
		t.Errorf("sample below the frequency must analyze")
	}
	if !policyReturning(0.3).ShouldAnalyze(settings, 10, strings.Repeat("x", 20)) {
		t.Errorf("sample exactly at the frequency must analyze")
	}
	if policyReturning(0.31).ShouldAnalyze(settings, 10, strings.Repeat("x", 20)) {
		t.Errorf("sample above the frequency must not analyze")
	}
}

func TestSamplingConvergesToFrequency(t *testing.T) {
	settings := admissionSettings()
	rng := rand.New(rand.NewSource(1))
	policy := &AdmissionPolicy{sample: rng.Float64}

	const trials = 100000
	analyzed := 0
	content := strings.Repeat("x", 20)
	for i := 0; i < trials; i++ {
		if policy.ShouldAnalyze(settings, 10, content) {
			analyzed++
		}
	}
	fraction := float64(analyzed) / trials
	if math.Abs(fraction-settings.AnalysisFrequency) > 0.01 {
		t.Errorf("empirical fraction %f, want %f ± 0.01", fraction, settings.AnalysisFrequency)
	}
}

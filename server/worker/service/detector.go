package service

import (
	"errors"
	"strings"

	"github.com/pemistahl/lingua-go"

	"langmod/server/backend/domain"
)

// ErrNoLinguisticFeatures marks text the detector cannot classify,
// such as emoji-only or numeric messages.
var ErrNoLinguisticFeatures = errors.New("no linguistic features in text")

// Detector scores a text against candidate languages. Results are
// ordered by descending probability.
type Detector interface {
	DetectLanguages(text string) ([]domain.LanguageScore, error)
}

// LinguaDetector backs Detector with an n-gram language model built
// once at startup; building it is expensive, detection is not.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

func NewLinguaDetector() *LinguaDetector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()
	return &LinguaDetector{detector: detector}
}

func (d *LinguaDetector) DetectLanguages(text string) ([]domain.LanguageScore, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoLinguisticFeatures
	}
	values := d.detector.ComputeLanguageConfidenceValues(text)
	scores := make([]domain.LanguageScore, 0, len(values))
	for _, cv := range values {
		if cv.Value() <= 0 {
			continue
		}
		scores = append(scores, domain.LanguageScore{
			Lang: strings.ToLower(cv.Language().IsoCode639_1().String()),
			Prob: cv.Value(),
		})
	}
	if len(scores) == 0 {
		return nil, ErrNoLinguisticFeatures
	}
	return scores, nil
}

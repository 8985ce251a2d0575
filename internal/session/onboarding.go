package session

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/postjournal/internal/models"
)

// ErrAPIKeyRequired is returned when onboarding has no API key.
var ErrAPIKeyRequired = errors.New("please enter your api key to continue")

// Onboarding is the first-run form.
type Onboarding struct {
	APIKey    string   `json:"api_key"`
	ToneGuide string   `json:"tone_guide"`
	Topics    []string `json:"topics"`
}

// Validate checks the form. Only the key is mandatory.
func (o Onboarding) Validate() error {
	if strings.TrimSpace(o.APIKey) == "" {
		return ErrAPIKeyRequired
	}
	return validation.ValidateStruct(&o,
		validation.Field(&o.ToneGuide, validation.Length(0, 4000)),
		validation.Field(&o.Topics, validation.Each(validation.Length(0, 64))),
	)
}

// Patch builds the profile write, filling blank tone and topics with defaults.
func (o Onboarding) Patch() models.ProfilePatch {
	key := strings.TrimSpace(o.APIKey)
	tone := strings.TrimSpace(o.ToneGuide)
	if tone == "" {
		tone = models.DefaultToneGuide
	}
	var topics []string
	for _, t := range o.Topics {
		topics = models.AddTopic(topics, t)
	}
	if len(topics) == 0 {
		topics = append([]string{}, models.DefaultTopics...)
	}
	done := true
	return models.ProfilePatch{
		ToneGuide:          &tone,
		Topics:             &topics,
		APIKey:             &key,
		OnboardingComplete: &done,
	}
}

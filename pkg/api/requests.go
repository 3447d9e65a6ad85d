package api

import (
	"fmt"
	"unicode/utf8"

	"github.com/politeai/tonebridge/pkg/models"
	"github.com/politeai/tonebridge/pkg/pipeline"
)

// TransformRequest is the request body shared by the batch and streaming
// endpoints. Persona, toneLevel, topic, and purpose are enum strings;
// contexts may name several situations.
type TransformRequest struct {
	OriginalText          string   `json:"originalText"`
	Persona               string   `json:"persona"`
	Contexts              []string `json:"contexts"`
	ToneLevel             string   `json:"toneLevel"`
	Topic                 string   `json:"topic"`
	Purpose               string   `json:"purpose"`
	SenderInfo            string   `json:"senderInfo"`
	UserPrompt            string   `json:"userPrompt"`
	IdentityBoosterToggle bool     `json:"identityBoosterToggle"`
}

const (
	maxSenderInfoLength = 100
	maxUserPromptLength = 500
)

// toPipelineRequest validates the body and converts it to a pipeline request.
func (s *Server) toPipelineRequest(req TransformRequest) (pipeline.Request, error) {
	if req.OriginalText == "" {
		return pipeline.Request{}, fmt.Errorf("originalText는 필수 입력값입니다.")
	}
	maxLength := s.settings.TierPaidMaxTextLength
	if utf8.RuneCountInString(req.OriginalText) > maxLength {
		return pipeline.Request{}, fmt.Errorf("최대 %d자까지 입력할 수 있습니다.", maxLength)
	}
	if utf8.RuneCountInString(req.SenderInfo) > maxSenderInfoLength {
		return pipeline.Request{}, fmt.Errorf("senderInfo는 최대 %d자까지 입력할 수 있습니다.", maxSenderInfoLength)
	}
	if utf8.RuneCountInString(req.UserPrompt) > maxUserPromptLength {
		return pipeline.Request{}, fmt.Errorf("userPrompt는 최대 %d자까지 입력할 수 있습니다.", maxUserPromptLength)
	}

	persona := models.PersonaBoss
	if req.Persona != "" {
		persona = models.Persona(req.Persona)
	}
	toneLevel := models.TonePolite
	if req.ToneLevel != "" {
		toneLevel = models.ToneLevel(req.ToneLevel)
	}

	contexts := make([]models.SituationContext, 0, len(req.Contexts))
	for _, c := range req.Contexts {
		contexts = append(contexts, models.SituationContext(c))
	}

	return pipeline.Request{
		Persona:               persona,
		Contexts:              contexts,
		ToneLevel:             toneLevel,
		Topic:                 models.Topic(req.Topic),
		Purpose:               models.Purpose(req.Purpose),
		OriginalText:          req.OriginalText,
		UserPrompt:            req.UserPrompt,
		SenderInfo:            req.SenderInfo,
		IdentityBoosterToggle: req.IdentityBoosterToggle,
	}, nil
}

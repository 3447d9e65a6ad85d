// Package prompt builds the Korean prompts for every LLM call: label maps,
// persona/context/tone blocks, and the final model's system prompt and JSON
// user message.
package prompt

import (
	"strings"

	"github.com/politeai/tonebridge/pkg/models"
)

var personaLabels = map[models.Persona]string{
	models.PersonaBoss:      "직장 상사",
	models.PersonaClient:    "고객",
	models.PersonaParent:    "학부모",
	models.PersonaProfessor: "교수",
	models.PersonaOther:     "기타",
	models.PersonaOfficial:  "공식 기관",
}

var contextLabels = map[models.SituationContext]string{
	models.ContextRequest:        "요청",
	models.ContextScheduleDelay:  "일정 지연",
	models.ContextUrging:         "독촉",
	models.ContextRejection:      "거절",
	models.ContextApology:        "사과",
	models.ContextComplaint:      "항의",
	models.ContextAnnouncement:   "공지",
	models.ContextFeedback:       "피드백",
	models.ContextBilling:        "비용/정산",
	models.ContextSupport:        "기술지원",
	models.ContextContract:       "계약",
	models.ContextRecruiting:     "채용",
	models.ContextCivilComplaint: "민원",
	models.ContextGratitude:      "감사",
}

var toneLabels = map[models.ToneLevel]string{
	models.ToneNeutral:    "중립",
	models.TonePolite:     "공손",
	models.ToneVeryPolite: "매우 공손",
}

// PersonaLabel returns the Korean display name for a persona.
func PersonaLabel(p models.Persona) string {
	if label, ok := personaLabels[p]; ok {
		return label
	}
	return string(p)
}

// ContextLabel returns the Korean display name for a situation context.
func ContextLabel(c models.SituationContext) string {
	if label, ok := contextLabels[c]; ok {
		return label
	}
	return string(c)
}

// ContextLabelList joins the Korean names of the contexts with ", ".
func ContextLabelList(contexts []models.SituationContext) string {
	labels := make([]string, len(contexts))
	for i, c := range contexts {
		labels[i] = ContextLabel(c)
	}
	return strings.Join(labels, ", ")
}

// ToneLabel returns the Korean display name for a tone level.
func ToneLabel(t models.ToneLevel) string {
	if label, ok := toneLabels[t]; ok {
		return label
	}
	return string(t)
}

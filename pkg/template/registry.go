package template

import (
	"github.com/politeai/tonebridge/pkg/models"
)

// SkipRule adjusts a template's sections for a specific recipient persona.
type SkipRule struct {
	Skip    map[Section]bool
	Shorten map[Section]bool
	Expand  map[Section]bool
}

// Template is one purpose-based message structure.
type Template struct {
	ID           string
	Name         string
	SectionOrder []Section
	Constraints  string
	PersonaRules map[models.Persona]SkipRule
}

// DefaultTemplateID is the fallback when nothing more specific applies.
const DefaultTemplateID = "T01_GENERAL"

func sections(s ...Section) map[Section]bool {
	m := make(map[Section]bool, len(s))
	for _, sec := range s {
		m[sec] = true
	}
	return m
}

func bossProfOfficialRules() map[models.Persona]SkipRule {
	return map[models.Persona]SkipRule{
		models.PersonaBoss:      {Shorten: sections(SectionAcknowledge)},
		models.PersonaProfessor: {Shorten: sections(SectionAcknowledge)},
		models.PersonaOfficial:  {Shorten: sections(SectionAcknowledge)},
	}
}

func clientExpandRules() map[models.Persona]SkipRule {
	rules := bossProfOfficialRules()
	rules[models.PersonaClient] = SkipRule{Expand: sections(SectionAcknowledge, SectionOurEffort)}
	return rules
}

func parentExpandRules() map[models.Persona]SkipRule {
	rules := bossProfOfficialRules()
	rules[models.PersonaParent] = SkipRule{Expand: sections(SectionAcknowledge)}
	return rules
}

// Registry holds the 12 built-in templates in registration order.
type Registry struct {
	templates map[string]*Template
	order     []string
}

// NewRegistry builds the registry with all built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template)}

	r.register(&Template{
		ID: "T01_GENERAL", Name: "일반 전달",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionRequest, SectionOptions, SectionClosing},
		Constraints:  "범용 템플릿. 특정 패턴 없이 사실 전달 + 요청 + 대안 구조.",
		PersonaRules: bossProfOfficialRules(),
	})
	r.register(&Template{
		ID: "T02_DATA_REQUEST", Name: "자료 요청",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionRequest, SectionClosing},
		Constraints:  "요청 사유를 먼저 밝히고, 구체적 자료/기한/형식을 명시. 부담을 줄이는 완곡 표현.",
		PersonaRules: bossProfOfficialRules(),
	})
	reminderRules := bossProfOfficialRules()
	reminderRules[models.PersonaClient] = SkipRule{Shorten: sections(SectionAcknowledge)}
	r.register(&Template{
		ID: "T03_NAGGING_REMINDER", Name: "독촉/리마인더",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionRequest, SectionClosing},
		Constraints:  "이전 요청 상기 + 회신 기한. 비난 없이 사실 기반 리마인드. S1은 짧게.",
		PersonaRules: reminderRules,
	})
	r.register(&Template{
		ID: "T04_SCHEDULE", Name: "일정 조율/지연",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionResponsibility, SectionOptions, SectionClosing},
		Constraints:  "사과 → 지연 원인(사실) → 새 일정 제안. 변명 최소화, 대안 집중.",
		PersonaRules: parentExpandRules(),
	})
	r.register(&Template{
		ID: "T05_APOLOGY", Name: "사과/수습",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionOurEffort, SectionFacts, SectionOptions, SectionClosing},
		Constraints:  "진심 사과 → 내부 확인 노력 → 원인 → 해결/재발 방지. S2 필수.",
		PersonaRules: clientExpandRules(),
	})
	r.register(&Template{
		ID: "T06_REJECTION", Name: "거절/불가 안내",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionPolicy, SectionFacts, SectionOptions, SectionClosing},
		Constraints:  "공감 → 정책/규정 근거 → 대안 제시. 감정 배제, 거절 이유 명확.",
		PersonaRules: clientExpandRules(),
	})
	r.register(&Template{
		ID: "T07_ANNOUNCEMENT", Name: "공지/안내",
		SectionOrder: []Section{SectionGreeting, SectionFacts, SectionRequest, SectionClosing},
		Constraints:  "두괄식. 핵심 정보(일시/장소/대상) 먼저. 행동 요청으로 마무리. S1 생략.",
	})
	r.register(&Template{
		ID: "T08_FEEDBACK", Name: "피드백",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionRequest, SectionOptions, SectionClosing},
		Constraints:  "긍정 인정 → 개선점(요청 형태) → 기대 효과. 비판 아닌 성장 지향.",
		PersonaRules: parentExpandRules(),
	})
	r.register(&Template{
		ID: "T09_BLAME_SEPARATION", Name: "책임 분리",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionOurEffort, SectionFacts, SectionResponsibility, SectionOptions, SectionClosing},
		Constraints:  "공감 → 내부 확인 → 사실 나열 → 귀책 방향(주어 전환) → 해결안. 비난 제거 필수.",
		PersonaRules: clientExpandRules(),
	})
	r.register(&Template{
		ID: "T10_RELATIONSHIP_RECOVERY", Name: "관계 회복",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionOptions, SectionClosing},
		Constraints:  "깊은 공감·사과 → 상황 인정 → 협력 제안. 감정 간접 전환 중시.",
		PersonaRules: parentExpandRules(),
	})
	r.register(&Template{
		ID: "T11_REFUND_REJECTION", Name: "환불 거절",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionOurEffort, SectionFacts, SectionPolicy, SectionOptions, SectionClosing},
		Constraints:  "공감 → 내부 점검 → 사실 → 정책 근거 → 대안. S2 필수(점검 노력 표시).",
		PersonaRules: clientExpandRules(),
	})
	r.register(&Template{
		ID: "T12_WARNING_PREVENTION", Name: "경고/재발 방지",
		SectionOrder: []Section{SectionGreeting, SectionAcknowledge, SectionFacts, SectionRequest, SectionOptions, SectionClosing},
		Constraints:  "문제 인정 → 사실/경과 → 구체적 요청(재발 방지) → 기대 효과.",
		PersonaRules: bossProfOfficialRules(),
	})

	return r
}

func (r *Registry) register(t *Template) {
	r.templates[t.ID] = t
	r.order = append(r.order, t.ID)
}

// Get returns the template with the given ID, or the default template.
func (r *Registry) Get(id string) *Template {
	if t, ok := r.templates[id]; ok {
		return t
	}
	return r.templates[DefaultTemplateID]
}

// Default returns the general-purpose template.
func (r *Registry) Default() *Template { return r.templates[DefaultTemplateID] }

// All returns every template in registration order.
func (r *Registry) All() []*Template {
	result := make([]*Template, len(r.order))
	for i, id := range r.order {
		result[i] = r.templates[id]
	}
	return result
}

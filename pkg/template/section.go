// Package template holds the purpose-based message structure templates and
// the selector that picks one from request metadata and label statistics.
package template

// Section is one slot in a message structure template.
type Section string

const (
	SectionGreeting       Section = "S0_GREETING"
	SectionAcknowledge    Section = "S1_ACKNOWLEDGE"
	SectionOurEffort      Section = "S2_OUR_EFFORT"
	SectionFacts          Section = "S3_FACTS"
	SectionResponsibility Section = "S4_RESPONSIBILITY"
	SectionRequest        Section = "S5_REQUEST"
	SectionOptions        Section = "S6_OPTIONS"
	SectionPolicy         Section = "S7_POLICY"
	SectionClosing        Section = "S8_CLOSING"
)

type sectionMeta struct {
	label          string
	instruction    string
	expressionPool []string
	lengthHint     string
}

var sectionMetas = map[Section]sectionMeta{
	SectionGreeting: {
		label:       "인사",
		instruction: "COURTESY 기반 인사. 보내는 사람 정보 있으면 포함",
		lengthHint:  "1문장",
	},
	SectionAcknowledge: {
		label:       "공감/유감",
		instruction: "상대 상황이나 요청에 대한 공감·유감·감사",
		expressionPool: []string{
			"말씀해 주신 내용 확인했습니다",
			"불편을 드린 점 유감입니다",
			"해당 상황에 대해 충분히 이해합니다",
			"말씀 주신 부분 관련하여",
		},
		lengthHint: "1~2문장",
	},
	SectionOurEffort: {
		label:       "내부 확인/점검",
		instruction: "우리 측 확인·점검·조치 노력. 비난 완화 장치",
		expressionPool: []string{
			"내부 확인 결과",
			"로그 기준으로 보면",
			"설정값을 기준으로 점검해 보니",
			"담당 부서와 확인한 바로는",
		},
		lengthHint: "1문장 가능",
	},
	SectionFacts: {
		label:       "핵심 사실",
		instruction: "CORE_FACT + ACCOUNTABILITY(재작성). 수치/날짜/원인 정확 보존",
		lengthHint:  "1~3문장",
	},
	SectionResponsibility: {
		label:       "책임 프레이밍",
		instruction: "귀책 방향 설정. 주어를 상황/시스템/프로세스로 전환",
		expressionPool: []string{
			"확인 결과 ~부분에서 차이가 발생하여",
			"해당 프로세스상 ~이(가) 원인으로 파악됩니다",
			"시스템 점검 과정에서 ~이(가) 확인되었습니다",
		},
		lengthHint: "1~2문장",
	},
	SectionRequest: {
		label:       "요청/행동 요청",
		instruction: "REQUEST + NEGATIVE_FEEDBACK(재작성). 기한/조건 보존",
		lengthHint:  "1~2문장",
	},
	SectionOptions: {
		label:       "대안/다음 단계",
		instruction: "CORE_INTENT + 대안 제시. 구체적 해결 방향",
		lengthHint:  "1~3문장",
	},
	SectionPolicy: {
		label:       "정책/한계/불가",
		instruction: "거절 근거. 정책/규정 기반 완곡 설명. 감정 배제",
		expressionPool: []string{
			"현행 정책에 따르면",
			"운영 기준상",
			"관련 규정에 의거하여",
		},
		lengthHint: "1~2문장",
	},
	SectionClosing: {
		label:       "마무리",
		instruction: "감사 + 해결 의지 또는 서명. 짧게.",
		lengthHint:  "1문장",
	},
}

// Label returns the Korean display name of the section.
func (s Section) Label() string { return sectionMetas[s].label }

// Instruction returns the rewriting instruction for the section.
func (s Section) Instruction() string { return sectionMetas[s].instruction }

// ExpressionPool returns suggested opening expressions, possibly empty.
func (s Section) ExpressionPool() []string { return sectionMetas[s].expressionPool }

// LengthHint returns the target length guidance for the section.
func (s Section) LengthHint() string { return sectionMetas[s].lengthHint }

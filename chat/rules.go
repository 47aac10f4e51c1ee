package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// Refusal is returned for any question outside the assistant's scope.
const Refusal = `의료 AI 어시스턴트 안내

죄송하지만, 저는 뇌 CT 영상 분석 및 의료 교육만을 전문으로 하는 AI입니다.

답변 가능한 질문들:
• 뇌 CT 분석 방법
• HU 값 해석
• 뇌출혈/뇌경색 진단
• 환자 정보 확인
• 영상 분석 결과 설명
• 의료 영상학 교육 내용

예시 질문:
• "이 환자의 진단은 무엇인가요?"
• "HU 값은 어떻게 해석하나요?"
• "뇌출혈의 종류를 알려주세요"

의료 관련 질문을 해주시면 자세히 도와드리겠습니다.`

const (
	greetingReply  = "언제든지 도움이 필요하시면 말씀해주세요."
	noPatientReply = "환자 정보를 불러오는 중입니다. 이미지를 먼저 선택해주세요."
	selectFirst    = "환자 정보를 먼저 불러와야 합니다. 이미지 드롭다운에서 환자를 선택해주세요."

	stepsHint = `  1단계: 축방향 윤곽선 그리기
  2단계: 시상면 높이 설정
  3단계: HU 값 범위 선택`
)

// RuleAnswer answers from local rules. ok is false when no rule applies and
// the question should go to the remote model.
func RuleAnswer(question string, ctx *AnalysisContext) (answer string, ok bool) {
	lower := strings.ToLower(question)

	if containsAny(lower, []string{"안녕", "고마워", "감사", "고맙"}) {
		return greetingReply, true
	}

	if containsAny(lower, []string{"환자 정보", "환자정보"}) {
		return PatientSummary(ctx), true
	}

	if containsAny(lower, []string{"결과", "분석", "진단", "소견"}) {
		return AnalysisReport(ctx), true
	}

	return "", false
}

// PatientSummary is the fixed patient information block.
func PatientSummary(ctx *AnalysisContext) string {
	if !ctx.hasPatient() {
		return noPatientReply
	}

	return fmt.Sprintf(`현재 환자 정보

환자 번호: %s
나이: %s세
성별: %s
진단: %s
골절: %s

더 자세한 분석이 필요하시면 구체적으로 질문해주세요.`,
		ctx.PatientNumber, ctx.Age, ctx.Gender, ctx.diagnosis(), yesNo(ctx.Fracture))
}

// AnalysisReport explains either the recorded diagnosis or, once a lesion has
// been segmented, the measured result.
func AnalysisReport(ctx *AnalysisContext) string {
	if !ctx.hasPatient() {
		return selectFirst
	}
	if !ctx.HasAnalysis {
		return recordReport(ctx)
	}
	return measuredReport(ctx)
}

func recordReport(ctx *AnalysisContext) string {
	diagnosis := ctx.diagnosis()

	var sb strings.Builder
	sb.WriteString("현재 환자의 의료 기록 정보\n\n")
	sb.WriteString("진단: " + diagnosis + "\n\n")

	if diagnosis != "정상" && len(ctx.Detailed) > 0 {
		sb.WriteString("상세 정보:\n")
		sb.WriteString(formatDetails(ctx.Detailed))
		sb.WriteString("\n\n※ 이는 기존 의료 기록 정보입니다.\n")
		sb.WriteString("※ 정확한 분석을 위해 3단계 분석을 완료해주세요:\n")
		sb.WriteString(stepsHint)
		sb.WriteString("\n\n※ 교육 목적 정보입니다. 실제 진단은 전문의와 상담하세요.")
		return sb.String()
	}

	sb.WriteString("※ 더 정확한 분석을 위해 3단계 분석을 완료해보세요:\n")
	sb.WriteString(stepsHint)
	return sb.String()
}

func measuredReport(ctx *AnalysisContext) string {
	var sb strings.Builder

	sb.WriteString("완료된 영상 분석 결과 (교육용)\n\n")
	sb.WriteString("■ 최종 방사선학적 진단\n")
	sb.WriteString(orDefault(ctx.RealDiagnosis, "정보 없음") + "\n\n")
	sb.WriteString("■ AI 보조 분석 결과\n")
	sb.WriteString(orDefault(ctx.Impression, "정보 없음") + "\n\n")
	sb.WriteString("■ 정량적 분석 데이터")

	if hu := ctx.HURange; hu != nil {
		fmt.Fprintf(&sb, "\n• 선택된 HU 값 범위: %.1f ~ %.1f\n• HU 값 해석:", hu.Min, hu.Max)
		if hu.Max > 50 {
			sb.WriteString("\n  - 급성 출혈 범위 포함 (50+ HU)")
		}
		if hu.Min < 30 && hu.Max > 30 {
			sb.WriteString("\n  - 정상 뇌조직 범위 포함 (30-40 HU)")
		}
		if hu.Min < 20 {
			sb.WriteString("\n  - 만성 출혈/부종 범위 포함 (<30 HU)")
		}
	}

	if ctx.LesionVolumeMM3 > 0 {
		ml := ctx.LesionVolumeMM3 / 1000
		fmt.Fprintf(&sb, "\n• 병변 부피: %s mm³ (%.1f ml)\n• 부피 평가:", groupThousands(ctx.LesionVolumeMM3), ml)
		switch {
		case ml > 30:
			sb.WriteString(" 대용량 출혈 (수술적 치료 고려 필요)")
		case ml > 10:
			sb.WriteString(" 중등도 출혈 (집중 관찰 필요)")
		default:
			sb.WriteString(" 소량 출혈 (보존적 치료 가능)")
		}
	}

	if sr := ctx.SliceRange; sr != nil {
		spread := "국소 분포"
		if sr.Count() > 10 {
			spread = "광범위 분포"
		}
		fmt.Fprintf(&sb, "\n• 슬라이스 분포: %d ~ %d번 (%d개 슬라이스)\n• 분포 범위: %s", sr.Start, sr.End, sr.Count(), spread)
	}

	if len(ctx.Detailed) > 0 {
		sb.WriteString("\n\n■ 기존 의료 기록과의 비교")
		sb.WriteString("\n• 기록상 진단: " + ctx.diagnosis())
		sb.WriteString("\n" + formatDetails(ctx.Detailed))
	}

	sb.WriteString("\n\n■ 학습 포인트 및 임상적 의의\n")
	sb.WriteString(orDefault(ctx.LearningPoint, "추가 학습 정보 없음"))
	sb.WriteString(`

■ 추가 교육 정보
• CT에서 급성 출혈은 높은 HU 값(50-90)으로 밝게 나타납니다
• 시간이 지나면서 HU 값이 감소하여 만성 출혈로 변화합니다
• 병변의 위치와 크기는 치료 방향 결정에 중요합니다
• 실제 임상에서는 환자 증상과 함께 종합적으로 판단합니다

※ 이는 교육 목적 분석이며, 실제 진단은 반드시 전문의와 상담하세요.`)

	return sb.String()
}

func formatDetails(details []Detail) string {
	lines := make([]string, 0, len(details))
	for _, d := range details {
		lines = append(lines, fmt.Sprintf("• %s: %d개 슬라이스 (%.1f%%)", d.Name, d.AffectedSlices, d.Percentage))
	}
	return strings.Join(lines, "\n")
}

func yesNo(b bool) string {
	if b {
		return "있음"
	}
	return "없음"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// groupThousands renders v rounded to an integer with comma separators.
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}

	if neg {
		return "-" + string(out)
	}
	return string(out)
}

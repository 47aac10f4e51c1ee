package chat

import (
	"fmt"
	"strings"
)

const basePrompt = `당신은 뇌 CT 영상 분석 전문 의료 AI 어시스턴트입니다.

역할:
- 의료진 및 학습자를 위한 상세하고 교육적인 정보 제공
- 뇌 CT 영상 분석 결과의 정확한 해석과 설명
- 임상적 의의, 치료 방향, 예후에 대한 포괄적 안내
- 의료 용어와 개념에 대한 자연스럽고 이해하기 쉬운 설명

응답 특징:
- 자연스럽고 친근한 대화체로 응답
- 볼드체 마크다운(**) 사용하지 않기
- 분석 완료 시 정량적 데이터와 임상적 해석을 풍부하게 제공
- 환자 안전과 교육적 가치를 최우선으로 고려
- 실제 측정값의 의미와 중요성을 구체적으로 설명

교육적 응답 가이드라인:
1. 의료 용어 질문: 정의, 원인, 특징, 진단법, 치료법을 종합적으로 설명
2. 환자별 분석: CSV 기록과 실제 분석 결과를 비교하여 학습 포인트 제시
3. 분석 결과 해석: HU 값, 부피, 분포의 임상적 의미를 상세히 설명
4. 치료적 관점: 병변 특성에 따른 치료 접근법과 예후 정보 제공
5. 안전성 강조: 교육 목적임을 명시하고 전문의 상담 권고

특별 지침:
- 경막외출혈, 뇌실질내출혈 등 모든 의료 용어에 대해 자세히 설명
- 환자 상태와 분석 결과를 연결하여 통합적 관점 제시
- 실무에서 중요한 감별점과 주의사항 포함
- 한국 의료 환경에 맞는 실용적 정보 제공`

const promptFooter = "주의사항: 이는 교육용 시스템이며, 실제 임상 진단에는 전문의 판단이 필요합니다."

// SystemPrompt builds the instruction sent ahead of the conversation.
func SystemPrompt(ctx *AnalysisContext) string {
	var patient, analysis string
	if ctx != nil {
		patient = patientBlock(ctx)
		if ctx.HasAnalysis {
			analysis = analysisBlock(ctx)
		}
	}

	return basePrompt + "\n\n" + patient + analysis + "\n\n" + promptFooter
}

func patientBlock(ctx *AnalysisContext) string {
	details := "상세 진단 정보 없음"
	if len(ctx.Detailed) > 0 {
		details = formatDetails(ctx.Detailed)
	}

	return fmt.Sprintf(`현재 환자 정보:
환자 번호: %s
나이: %s세
성별: %s
기본 진단: %s
골절: %s

상세 진단 정보:
%s`,
		orDefault(ctx.PatientNumber, "N/A"), orDefault(ctx.Age, "N/A"), orDefault(ctx.Gender, "N/A"),
		ctx.diagnosis(), yesNo(ctx.Fracture), details)
}

func analysisBlock(ctx *AnalysisContext) string {
	var sb strings.Builder
	sb.WriteString("\n\n=== 완료된 영상 분석 결과 ===")

	if ctx.RealDiagnosis != "" {
		sb.WriteString("\n실제 방사선학적 진단: " + ctx.RealDiagnosis)
	}
	if ctx.Impression != "" {
		sb.WriteString("\nAI 분석 결과: " + ctx.Impression)
	}
	if hu := ctx.HURange; hu != nil {
		fmt.Fprintf(&sb, "\n선택된 HU 값 범위: %.1f ~ %.1f", hu.Min, hu.Max)
	}
	if ctx.LesionVolumeMM3 > 0 {
		fmt.Fprintf(&sb, "\n병변 부피: %s mm³ (%.1f ml)", groupThousands(ctx.LesionVolumeMM3), ctx.LesionVolumeMM3/1000)
	}
	if sr := ctx.SliceRange; sr != nil {
		fmt.Fprintf(&sb, "\n슬라이스 분포: %d ~ %d번 (%d개)", sr.Start, sr.End, sr.Count())
	}
	if ctx.LearningPoint != "" {
		sb.WriteString("\n학습 포인트: " + ctx.LearningPoint)
	}

	sb.WriteString("\n\n이 실제 분석 결과를 활용하여 교육적이고 상세한 답변을 제공하세요.")
	return sb.String()
}

package segment

// The attenuation boundary between fresh blood and oedematous or infarcted
// parenchyma on a non-contrast head CT.
const acuteBloodHU = 40

const (
	ImpressionHemorrhage = "급성 출혈 의심"
	ImpressionInfarct    = "뇌경색 의심"
	ImpressionUncertain  = "추가 검사 필요"
)

// LearningPoint is shown alongside every impression.
const LearningPoint = "HU 값만으로는 완전한 진단이 어려우며, 임상 소견과 함께 종합적으로 판단해야 합니다."

// Impression reads a provisional finding off the selected intensity window.
func Impression(th Threshold) string {
	th = th.Sorted()

	switch {
	case th.Min >= acuteBloodHU:
		return ImpressionHemorrhage
	case th.Max <= acuteBloodHU:
		return ImpressionInfarct
	}

	return ImpressionUncertain
}

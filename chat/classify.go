package chat

import (
	"strings"
	"unicode/utf8"
)

// Topics outside the assistant's scope. Checked before anything else.
var nonMedicalKeywords = []string{
	"날씨", "음식", "요리", "영화", "드라마", "게임", "스포츠",
	"정치", "경제", "주식", "부동산", "여행", "쇼핑", "패션",
	"음악", "연예인", "축구", "야구", "농구", "코인", "비트코인",
	"카페", "맛집", "레스토랑", "커피", "술", "맥주", "와인",
}

var medicalKeywords = []string{
	// head CT
	"ct", "뇌", "두부", "머리", "영상", "스캔", "슬라이스",
	// pathology
	"출혈", "경색", "뇌졸중", "혈관", "병변", "종양", "부종",
	"경막", "지주막", "뇌실", "뇌조직", "혈종", "실질",
	// clinical terms
	"hu", "값", "밀도", "진단", "증상", "치료", "검사", "분석",
	"환자", "의료", "병원", "의사", "간호사", "방사선",
	// anatomy
	"전두엽", "두정엽", "측두엽", "후두엽", "소뇌", "뇌간",
	"대뇌", "중뇌", "연수", "교뇌",
	// using the viewer
	"방법", "어떻게", "사용", "단계", "순서", "도움", "안내",
	// greetings
	"안녕", "고마워", "감사", "고맙",
}

var resultKeywords = []string{"환자", "정보", "결과", "소견"}

// Short acknowledgements accepted only in messages of five runes or fewer.
var shortReplies = []string{"네", "예", "응", "넹", "좋아", "알겠"}

var simpleGreetings = []string{"안녕", "고마워", "감사", "고맙", "네", "예", "응"}

// IsMedical decides whether a message is in scope. The deny-list wins over
// everything; then the medical allow-list, result words and finally short
// acknowledgements are tried in that order.
func IsMedical(message string) bool {
	lower := strings.ToLower(message)

	if containsAny(lower, nonMedicalKeywords) {
		return false
	}
	if containsAny(lower, medicalKeywords) {
		return true
	}
	if containsAny(lower, resultKeywords) {
		return true
	}
	if utf8.RuneCountInString(strings.TrimSpace(message)) <= 5 && containsAny(lower, shortReplies) {
		return true
	}

	return false
}

// IsSimple reports whether a medical message is answered from local rules
// without a remote call: a short greeting, or a bare request for the patient
// summary.
func IsSimple(message string) bool {
	lower := strings.ToLower(message)

	if utf8.RuneCountInString(strings.TrimSpace(message)) <= 5 && containsAny(lower, simpleGreetings) {
		return true
	}
	if containsAny(lower, []string{"환자 정보", "환자정보"}) && utf8.RuneCountInString(message) <= 15 {
		return true
	}

	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

package cohort

import (
	"regexp"
	"strings"
	"time"
)

// DefaultBirthYear stands in for a missing or unparsable birth date.
const DefaultBirthYear = 2000

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006.01.02",
	"2006/01/02",
	"20060102",
	"2006",
}

// ParseDate accepts the date shapes clients send (ISO dates, timestamps,
// dotted Korean style dates, bare years).
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BirthYear returns the year of birthDate or DefaultBirthYear.
func BirthYear(birthDate string) int {
	if t, ok := ParseDate(birthDate); ok {
		return t.Year()
	}
	return DefaultBirthYear
}

// AgeGroup buckets the age implied by birthDate at now.
// Only calendar years are compared, birthdays are ignored.
func AgeGroup(birthDate string, now time.Time) string {
	return AgeGroupForAge(now.Year() - BirthYear(birthDate))
}

// AgeGroupForAge buckets an age in years.
func AgeGroupForAge(age int) string {
	switch {
	case age < 20:
		return "10대"
	case age < 30:
		return "20대"
	case age < 40:
		return "30대"
	case age < 50:
		return "40대"
	default:
		return "50대+"
	}
}

var zodiacAnimals = [12]string{"원숭이", "닭", "개", "돼지", "쥐", "소", "호랑이", "토끼", "용", "뱀", "말", "양"}

// ZodiacName returns the animal of the 12 year cycle.
func ZodiacName(year int) string {
	return zodiacAnimals[mod(year, 12)]
}

// Element returns the five-element label of the year's heavenly stem.
func Element(year int) string {
	switch stem := mod(year-4, 10); {
	case stem < 2:
		return "목"
	case stem < 4:
		return "화"
	case stem < 6:
		return "토"
	case stem < 8:
		return "금"
	default:
		return "수"
	}
}

var heavenlyStems = [10]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}

var hangulStems = map[string]string{
	"갑": "甲", "을": "乙", "병": "丙", "정": "丁", "무": "戊",
	"기": "己", "경": "庚", "신": "辛", "임": "壬", "계": "癸",
}

// DayMasterFromYear approximates the day master by the year stem.
func DayMasterFromYear(year int) string {
	return heavenlyStems[mod(year-4, 10)]
}

// Stem normalizes a heavenly stem given in Hanja or Hangul to Hanja.
func Stem(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, st := range heavenlyStems {
		if s == st {
			return st, true
		}
	}
	st, ok := hangulStems[s]
	return st, ok
}

var elementLabels = []string{"목", "화", "토", "금", "수"}

// ElementBalance accepts "<element>과다" labels only.
func ElementBalance(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, e := range elementLabels {
		if s == e+"과다" {
			return s, true
		}
	}
	return "", false
}

// ZodiacLabel keeps s when it is one of the 12 animals, else def.
func ZodiacLabel(s, def string) string {
	s = strings.TrimSpace(s)
	for _, z := range zodiacAnimals {
		if s == z {
			return z
		}
	}
	return def
}

// Period buckets an hour of day (0-23).
func Period(hour int) string {
	switch {
	case hour < 6:
		return "새벽"
	case hour < 12:
		return "아침"
	case hour < 18:
		return "오후"
	case hour < 21:
		return "저녁"
	default:
		return "밤"
	}
}

// Season buckets a month (1-12). Anything outside spring to autumn is winter.
func Season(month int) string {
	switch {
	case month >= 3 && month <= 5:
		return "봄"
	case month >= 6 && month <= 8:
		return "여름"
	case month >= 9 && month <= 11:
		return "가을"
	default:
		return "겨울"
	}
}

// Gender maps the client's gender code.
func Gender(g string) string {
	switch g {
	case "male":
		return "남"
	case "female":
		return "여"
	default:
		return "기타"
	}
}

// GenderPair classifies a couple. Mixed pairs are 남녀 regardless of order.
func GenderPair(gender1, gender2 string) string {
	male1 := gender1 == "male" || gender1 == "남"
	male2 := gender2 == "male" || gender2 == "남"

	switch {
	case male1 != male2:
		return "남녀"
	case male1:
		return "남남"
	default:
		return "여여"
	}
}

// RiskTolerance derives an investment temperament from an element.
func RiskTolerance(element string) string {
	switch element {
	case "금", "수":
		return "보수적"
	case "토":
		return "중립"
	default:
		return "공격적"
	}
}

// rule is one ordered pattern of a free-text classifier.
type rule struct {
	re    *regexp.Regexp
	label string
}

// rules compiles pattern/label pairs; order is match priority.
func rules(pairs ...string) []rule {
	out := make([]rule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, rule{re: regexp.MustCompile(pairs[i]), label: pairs[i+1]})
	}
	return out
}

// classify returns the label of the first matching rule or def.
func classify(text string, rs []rule, def string) string {
	if text == "" {
		return def
	}
	for _, r := range rs {
		if r.re.MatchString(text) {
			return r.label
		}
	}
	return def
}

var industryRules = rules(
	`IT|개발|소프트웨어|테크|프로그래밍`, "IT",
	`금융|은행|보험|증권|투자`, "금융",
	`의료|병원|의사|간호|헬스케어`, "의료",
	`교육|학교|강사|교수|학원`, "교육",
	`서비스|요식|호텔|관광`, "서비스",
	`제조|공장|생산|엔지니어링`, "제조",
	`예술|디자인|음악|미술|콘텐츠`, "예술",
	`공공|공무원|정부|행정`, "공공",
	`스타트업|창업|벤처`, "스타트업",
)

// Industry classifies a free-text industry.
func Industry(s string) string { return classify(s, industryRules, "기타") }

var dreamCategoryRules = rules(
	`날다|하늘|비행|새|떠오르|공중`, "날기",
	`떨어|추락|절벽|높은곳|낙하`, "떨어짐",
	`쫓기|도망|쫓아오|따라오`, "추격",
	`시험|테스트|문제|답안|학교|학원`, "시험",
	`늦|지각|놓치|기차|비행기|버스`, "늦음",
	`죽|장례|시체|묘지|사망`, "죽음",
	`돈|지갑|금|보물|복권|로또`, "돈",
	`개|고양이|뱀|호랑이|동물|사자|곰`, "동물",
	`바다|강|호수|수영|익사|물|비`, "물",
)

// DreamCategory classifies dream content by its dominant motif.
func DreamCategory(s string) string { return classify(s, dreamCategoryRules, "사람") }

var dreamEmotionRules = rules(
	`무섭|두렵|겁|공포|소름`, "공포",
	`불안|걱정|초조|긴장`, "불안",
	`기쁘|행복|좋|웃|즐거`, "기쁨",
	`슬프|울|눈물|서러|아프`, "슬픔",
)

// DreamEmotion classifies the feeling of dream content.
func DreamEmotion(s string) string { return classify(s, dreamEmotionRules, "중립") }

var talentRules = rules(
	`예술|창작|표현|디자인|미술|음악`, "예술",
	`기술|개발|IT|엔지니어|프로그래밍`, "기술",
	`리더십|관리|통솔|경영|기획`, "리더십",
	`분석|데이터|연구|논리`, "분석",
	`창의|아이디어|혁신|마케팅`, "창의",
	`사회|소통|상담|대인|영업`, "사회",
	`실무|행정|운영|사무`, "실무",
	`학문|교육|교수`, "학문",
)

// TalentArea classifies a talent area.
func TalentArea(s string) string { return classify(s, talentRules, "기타") }

var emotionStateRules = rules(
	`미련|그리움|보고싶`, "미련",
	`분노|화|억울`, "분노",
	`무덤덤|괜찮|아무렇지`, "무덤덤",
	`추억|좋았`, "그리움",
)

// EmotionState classifies feelings toward an ex-partner.
func EmotionState(s string) string { return classify(s, emotionStateRules, "혼란") }

var timeElapsedRules = rules(
	`1개월|한달|최근`, "1개월내",
	`6개월|반년`, "1-6개월",
	`1년|12개월`, "6-12개월",
	`(?s).`, "1년이상",
)

// TimeElapsed buckets the time since a breakup. Unrecognised text counts as over a year.
func TimeElapsed(s string) string { return classify(s, timeElapsedRules, "1-6개월") }

var contactStatusRules = rules(
	`연락중|가끔|소통`, "연락중",
	`차단|블록`, "차단",
)

// ContactStatus classifies contact with an ex-partner.
func ContactStatus(s string) string { return classify(s, contactStatusRules, "연락끊김") }

var dateGoalRules = rules(
	`진지|결혼|장기|오래`, "진지한만남",
	`가벼|친구|재미|캐주얼`, "가벼운만남",
	`(?s).`, "친구먼저",
)

// DateGoal classifies what a user wants from a blind date.
func DateGoal(s string) string { return classify(s, dateGoalRules, "진지한만남") }

var avoidContextRules = rules(
	`직장|회사|업무|상사|동료`, "직장",
	`학교|학생|교수|선배|후배`, "학교",
	`가족|부모|형제|친척`, "가족",
	`연애|애인|이성|데이트`, "연애",
)

// AvoidContext classifies the setting of the avoid-people fortune.
func AvoidContext(s string) string { return classify(s, avoidContextRules, "일반") }

var questionRules = rules(
	`연애|사랑|결혼|이성|짝|소개팅`, "연애",
	`취업|직장|일|커리어|승진|이직`, "취업",
	`건강|아프|병|몸|다이어트`, "건강",
	`돈|재물|투자|금전|사업|매출`, "금전",
)

// QuestionCategory classifies a free-form question.
func QuestionCategory(s string) string { return classify(s, questionRules, "대인") }

var familyRelationshipRules = rules(
	`parent|부모`, "부모",
	`child|자녀`, "자녀",
	`spouse|배우자`, "배우자",
	`sibling|형제`, "형제",
)

// FamilyRelationship classifies the family member a reading is about.
func FamilyRelationship(s string) string { return classify(s, familyRelationshipRules, "가족") }

var familyConcernRules = rules(
	`couple|부부|배우자`, "부부",
	`parent|child|부모|자녀`, "부모자녀",
	`sibling|형제`, "형제",
	`in_law|시댁|친정`, "시댁친정",
	`conflict|갈등`, "갈등",
)

// FamilyConcern classifies the selected questions plus the concern label together.
func FamilyConcern(questions []string, label string) string {
	combined := strings.TrimSpace(strings.Join(questions, " ") + " " + label)
	return classify(combined, familyConcernRules, "전체")
}

var faceShapeRules = rules(
	`(?i)타원|oval`, "타원형",
	`(?i)둥근|round`, "둥근형",
	`(?i)각진|square`, "각진형",
	`(?i)역삼각|inverted`, "역삼각형",
	`(?i)긴|long`, "긴형",
	`(?i)하트|heart`, "하트형",
	`(?i)마름모|diamond`, "마름모형",
	`(?i)삼각|triangle`, "삼각형",
)

// FaceShape classifies a face shape in Korean or English.
func FaceShape(s string) string { return classify(s, faceShapeRules, "타원형") }

var petNames = map[string]string{
	"dog":     "강아지",
	"cat":     "고양이",
	"bird":    "새",
	"fish":    "물고기",
	"hamster": "햄스터",
	"rabbit":  "토끼",
}

var petRules = rules(
	`(?i)강아지|개|dog`, "개",
	`(?i)고양이|cat`, "고양이",
	`(?s).`, "기타",
)

// PetCategory maps a pet code or name to 개, 고양이 or 기타. Missing input means a dog.
func PetCategory(petType string) string {
	if name, ok := petNames[petType]; ok {
		petType = name
	}
	return classify(petType, petRules, "개")
}

var examNames = map[string]string{
	"college":       "수능",
	"job":           "취업",
	"certification": "자격증",
	"promotion":     "승진",
	"interview":     "면접",
}

var examRules = rules(
	`수능|대학|입시`, "수능",
	`취업|입사|면접`, "취업",
)

// ExamCategory maps an exam code, or classifies free text.
func ExamCategory(examType string) string {
	if label, ok := examNames[examType]; ok {
		return label
	}
	return classify(examType, examRules, "자격증")
}

var directionRules = rules(
	`(?i)동|east`, "동",
	`(?i)서|west`, "서",
	`(?i)남|south`, "남",
	`(?i)북|north`, "북",
)

// Direction classifies a compass direction.
func Direction(s string) string { return classify(s, directionRules, "동") }

var relationshipRules = rules(
	`(?i)기혼|결혼|married`, "기혼",
	`(?i)연애|교제|커플|dating|relationship|couple`, "연애중",
	`(?i)썸|some|crush`, "썸",
	`(?i)솔로|싱글|single`, "솔로",
)

// RelationshipStatus buckets a relationship status.
func RelationshipStatus(s string) string { return classify(s, relationshipRules, "솔로") }

var luckyCategories = map[string]bool{
	"fashion": true, "food": true, "color": true, "place": true, "number": true, "accessory": true,
}

// LuckyCategory keeps known lucky-item categories, else fashion.
func LuckyCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if luckyCategories[s] {
		return s
	}
	return "fashion"
}

var spreadTypes = map[string]bool{"single": true, "three": true, "celtic": true}

// SpreadType keeps known tarot spreads, else single.
func SpreadType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if spreadTypes[s] {
		return s
	}
	return "single"
}

var mbtiPattern = regexp.MustCompile(`^[EI][NS][TF][JP]$`)

// MBTIType keeps one of the 16 types, else INFP.
func MBTIType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if mbtiPattern.MatchString(s) {
		return s
	}
	return "INFP"
}

// lookup returns table[key] or def.
func lookup(table map[string]string, key, def string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return def
}

// mod is the non-negative remainder, so years before the epoch of a cycle stay in range.
func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

package cohort

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"fortunegate/pkg/logging"
)

// ExtractFunc builds the cohort of one fortune type. now is in the service time zone.
type ExtractFunc func(in Input, now time.Time) Data

var extractors = map[string]ExtractFunc{
	"daily":               extractDaily,
	"love":                extractLove,
	"mbti":                extractMBTI,
	"lucky-items":         extractLuckyItems,
	"career":              extractCareer,
	"health":              extractHealth,
	"dream":               extractDream,
	"compatibility":       extractCompatibility,
	"talent":              extractTalent,
	"investment":          extractInvestment,
	"wealth":              extractWealth,
	"ex-lover":            extractExLover,
	"blind-date":          extractBlindDate,
	"avoid-people":        extractAvoidPeople,
	"saju":                extractSaju,
	"traditional-saju":    extractSaju,
	"tarot":               extractTarot,
	"face-reading":        extractFaceReading,
	"face":                extractFaceReading,
	"family-relationship": extractFamily,
	"family-change":       extractFamily,
	"family-children":     extractFamily,
	"family-health":       extractFamily,
	"family-wealth":       extractFamily,
	"new-year":            extractNewYear,
	"new_year":            extractNewYear,
	"talisman":            extractTalisman,
	"pet-compatibility":   extractPetCompatibility,
	"pet":                 extractPetCompatibility,
	"exam":                extractExam,
	"moving":              extractMoving,
}

// aliases maps alternate spellings to the name pools are stored under.
var aliases = map[string]string{
	"saju":     "traditional-saju",
	"face":     "face-reading",
	"new_year": "new-year",
	"pet":      "pet-compatibility",
}

// Canonical returns the name fortuneType's pool rows are stored under.
func Canonical(fortuneType string) string {
	if target, ok := aliases[fortuneType]; ok {
		return target
	}
	return fortuneType
}

// FortuneTypes lists every fortune type with a cohort extractor, aliases included.
func FortuneTypes() []string {
	out := make([]string, 0, len(extractors))
	for k := range extractors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether fortuneType has an extractor.
func Supports(fortuneType string) bool {
	_, ok := extractors[fortuneType]
	return ok
}

// Extractor dispatches a fortune type to its cohort extractor.
type Extractor struct {
	loc *time.Location
	now func() time.Time
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor returns an extractor evaluating dates in loc (Asia/Seoul when nil).
func NewExtractor(loc *time.Location, opts ...ExtractorOption) *Extractor {
	if loc == nil {
		loc = SeoulLocation()
	}
	e := &Extractor{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the cohort of in for fortuneType. It returns nil when the
// type is unknown or extraction fails; callers then skip the pool.
func (e *Extractor) Extract(ctx context.Context, fortuneType string, in Input) (data Data) {
	logger := logging.L(ctx)

	fn, ok := extractors[fortuneType]
	if !ok {
		logger.Debug("cohort_extract_unsupported", zap.String("fortune_type", fortuneType))
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("cohort_extract_failed",
				zap.String("fortune_type", fortuneType),
				zap.Any("error", rec),
			)
			data = nil
		}
	}()

	return fn(in, e.now().In(e.loc))
}

// SeoulLocation loads Asia/Seoul, falling back to a fixed +09:00 zone.
func SeoulLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// ageGroupOf prefers an explicit age, then the birth date, then def.
func ageGroupOf(in Input, now time.Time, def string) string {
	switch {
	case in.Age > 0:
		return AgeGroupForAge(in.Age)
	case in.BirthDate != "":
		return AgeGroup(in.BirthDate, now)
	default:
		return def
	}
}

func extractDaily(in Input, now time.Time) Data {
	if t, ok := ParseDate(in.Date); ok {
		now = t.In(now.Location())
	}
	year := BirthYear(in.BirthDate)
	return Data{
		"period":  Period(now.Hour()),
		"zodiac":  ZodiacName(year),
		"element": Element(year),
	}
}

func extractLove(in Input, now time.Time) Data {
	return Data{
		"ageGroup":           AgeGroup(in.BirthDate, now),
		"gender":             Gender(in.Gender),
		"relationshipStatus": RelationshipStatus(in.RelationshipStatus),
		"zodiac":             ZodiacName(BirthYear(in.BirthDate)),
	}
}

func extractMBTI(in Input, _ time.Time) Data {
	return Data{"mbti": MBTIType(in.MBTI)}
}

func extractLuckyItems(in Input, _ time.Time) Data {
	category := in.Category
	if category == "" && len(in.Interests) > 0 {
		category = in.Interests[0]
	}
	return Data{"category": LuckyCategory(category)}
}

func extractCareer(in Input, now time.Time) Data {
	return Data{
		"ageGroup": ageGroupOf(in, now, "30대"),
		"gender":   Gender(in.Gender),
		"industry": Industry(in.Industry),
	}
}

func extractHealth(in Input, now time.Time) Data {
	return Data{
		"ageGroup": AgeGroup(in.BirthDate, now),
		"gender":   Gender(in.Gender),
		"season":   Season(int(now.Month())),
		"element":  Element(BirthYear(in.BirthDate)),
	}
}

func extractDream(in Input, _ time.Time) Data {
	content := in.DreamText()
	return Data{
		"dreamCategory": DreamCategory(content),
		"emotion":       DreamEmotion(content),
		"zodiac":        ZodiacName(BirthYear(in.BirthDate)),
	}
}

func extractCompatibility(in Input, _ time.Time) Data {
	g1, g2 := in.Person1Gender, in.Person2Gender
	if g1 == "" {
		g1 = "male"
	}
	if g2 == "" {
		g2 = "female"
	}
	return Data{
		"zodiac1":    ZodiacName(BirthYear(in.Person1BirthDate)),
		"zodiac2":    ZodiacName(BirthYear(in.Person2BirthDate)),
		"genderPair": GenderPair(g1, g2),
	}
}

func extractTalent(in Input, now time.Time) Data {
	return Data{
		"ageGroup":   ageGroupOf(in, now, "30대"),
		"gender":     Gender(in.Gender),
		"talentArea": TalentArea(in.TalentArea),
	}
}

func extractInvestment(in Input, now time.Time) Data {
	element := Element(BirthYear(in.BirthDate))
	return Data{
		"ageGroup":      ageGroupOf(in, now, "30대"),
		"riskTolerance": RiskTolerance(element),
		"element":       element,
	}
}

var (
	wealthGoals   = map[string]string{"saving": "목돈", "house": "내집", "expense": "지출", "investment": "투자", "income": "수입"}
	wealthRisks   = map[string]string{"safe": "안전", "balanced": "균형", "aggressive": "공격"}
	wealthUrgency = map[string]string{"urgent": "급함", "thisYear": "올해", "longTerm": "장기"}
	newYearGoals  = map[string]string{"success": "성공", "love": "사랑", "wealth": "부자", "health": "건강", "growth": "성장", "travel": "여행", "peace": "평화"}
)

func extractWealth(in Input, _ time.Time) Data {
	return Data{
		"goal":    lookup(wealthGoals, in.Goal, "목돈"),
		"risk":    lookup(wealthRisks, in.Risk, "균형"),
		"urgency": lookup(wealthUrgency, in.Urgency, "장기"),
	}
}

func extractExLover(in Input, _ time.Time) Data {
	return Data{
		"emotionState":  EmotionState(in.EmotionState),
		"timeElapsed":   TimeElapsed(in.TimeElapsed),
		"contactStatus": ContactStatus(in.ContactStatus),
	}
}

func extractBlindDate(in Input, now time.Time) Data {
	return Data{
		"ageGroup": ageGroupOf(in, now, "20대"),
		"gender":   Gender(in.Gender),
		"dateGoal": DateGoal(in.DateGoal),
	}
}

func extractAvoidPeople(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)
	return Data{
		"zodiac":  ZodiacName(year),
		"element": Element(year),
		"context": AvoidContext(in.Context),
	}
}

func extractSaju(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)

	dayMaster := DayMasterFromYear(year)
	balance := Element(year) + "과다"
	if s := in.SajuData; s != nil {
		if s.DayPillar != nil {
			if st, ok := Stem(s.DayPillar.Gan); ok {
				dayMaster = st
			}
		}
		if b, ok := ElementBalance(s.ElementBalance); ok {
			balance = b
		}
	}

	return Data{
		"dayMaster":        dayMaster,
		"elementBalance":   balance,
		"questionCategory": QuestionCategory(in.Question),
	}
}

func extractTarot(in Input, _ time.Time) Data {
	return Data{
		"spreadType":       SpreadType(in.SpreadType),
		"questionCategory": QuestionCategory(in.Question),
		"element":          Element(BirthYear(in.BirthDate)),
	}
}

func extractFamily(in Input, now time.Time) Data {
	return Data{
		"relationship":    FamilyRelationship(in.Relationship),
		"concernCategory": FamilyConcern(in.DetailedQuestions, in.ConcernLabel),
		"season":          Season(int(now.Month())),
	}
}

func extractFaceReading(in Input, now time.Time) Data {
	return Data{
		"faceShape": FaceShape(in.FaceShape),
		"gender":    Gender(in.Gender),
		"ageGroup":  ageGroupOf(in, now, "30대"),
	}
}

func extractNewYear(in Input, _ time.Time) Data {
	return Data{
		"goal":   lookup(newYearGoals, in.Goal, "성공"),
		"zodiac": ZodiacLabel(in.ZodiacAnimal, ZodiacName(BirthYear(in.BirthDate))),
	}
}

func extractTalisman(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)
	return Data{
		"zodiac":  ZodiacName(year),
		"element": Element(year),
	}
}

func extractPetCompatibility(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)
	return Data{
		"petCategory": PetCategory(in.PetType),
		"zodiac":      ZodiacName(year),
		"element":     Element(year),
	}
}

func extractExam(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)
	return Data{
		"examCategory": ExamCategory(in.ExamType),
		"zodiac":       ZodiacName(year),
		"element":      Element(year),
	}
}

func extractMoving(in Input, _ time.Time) Data {
	year := BirthYear(in.BirthDate)
	return Data{
		"direction": Direction(in.Direction),
		"zodiac":    ZodiacName(year),
		"element":   Element(year),
	}
}

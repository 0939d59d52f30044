package cohort

// SajuData is the subset of a client-side saju computation the extractors read.
type SajuData struct {
	DayMaster *struct {
		Element string `json:"element,omitempty"`
	} `json:"dayMaster,omitempty"`
	DayPillar *struct {
		Gan string `json:"gan,omitempty"`
	} `json:"dayPillar,omitempty"`
	ElementBalance string `json:"elementBalance,omitempty"`
}

// Input is the union of request fields any fortune type reads.
// Zero values mean "not supplied"; Age 0 is treated as absent.
type Input struct {
	Name     string `json:"name,omitempty"`
	UserName string `json:"userName,omitempty"`

	BirthDate string `json:"birthDate,omitempty"`
	Date      string `json:"date,omitempty"`
	Age       int    `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	MBTI      string `json:"mbti,omitempty"`

	RelationshipStatus string `json:"relationshipStatus,omitempty"`
	DateGoal           string `json:"dateGoal,omitempty"`
	EmotionState       string `json:"emotionState,omitempty"`
	TimeElapsed        string `json:"timeElapsed,omitempty"`
	ContactStatus      string `json:"contactStatus,omitempty"`
	ExName             string `json:"exName,omitempty"`

	Person1BirthDate string `json:"person1_birth_date,omitempty"`
	Person2BirthDate string `json:"person2_birth_date,omitempty"`
	Person1Gender    string `json:"person1_gender,omitempty"`
	Person2Gender    string `json:"person2_gender,omitempty"`
	Person1Name      string `json:"person1_name,omitempty"`
	Person2Name      string `json:"person2_name,omitempty"`

	Category  string   `json:"category,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Industry  string   `json:"industry,omitempty"`

	TalentArea string `json:"talentArea,omitempty"`

	DreamContent string `json:"dream_content,omitempty"`
	Dream        string `json:"dream,omitempty"`

	Goal    string `json:"goal,omitempty"`
	Risk    string `json:"risk,omitempty"`
	Urgency string `json:"urgency,omitempty"`

	Context    string `json:"context,omitempty"`
	Question   string `json:"question,omitempty"`
	SpreadType string `json:"spreadType,omitempty"`
	FaceShape  string `json:"faceShape,omitempty"`

	Relationship      string   `json:"relationship,omitempty"`
	DetailedQuestions []string `json:"detailed_questions,omitempty"`
	ConcernLabel      string   `json:"concern_label,omitempty"`

	ZodiacAnimal string `json:"zodiacAnimal,omitempty"`
	PetType      string `json:"petType,omitempty"`
	ExamType     string `json:"examType,omitempty"`
	Direction    string `json:"direction,omitempty"`

	SajuData *SajuData `json:"sajuData,omitempty"`
}

// DreamText prefers dream_content over dream.
func (in Input) DreamText() string {
	if in.DreamContent != "" {
		return in.DreamContent
	}
	return in.Dream
}

// Personal collects the placeholder values of the input.
func (in Input) Personal() PersonalData {
	return PersonalData{
		Name:         in.Name,
		UserName:     in.UserName,
		Age:          in.Age,
		BirthDate:    in.BirthDate,
		Person1Name:  in.Person1Name,
		Person2Name:  in.Person2Name,
		Question:     in.Question,
		DreamContent: in.DreamText(),
		ExName:       in.ExName,
	}
}

package models

// Training is the ordered module listing of one training program, served by
// the content layer.
type Training struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	TotalSections   int              `json:"total_sections"`
	Modules         []TrainingModule `json:"modules"`
	FinalExamQuizID string           `json:"final_exam_quiz_id,omitempty"`
}

type TrainingModule struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Position     int    `json:"position"`
	SectionCount int    `json:"section_count"`
	QuizID       string `json:"quiz_id,omitempty"`
	PassingScore *int   `json:"passing_score,omitempty"`
}

func (m TrainingModule) HasQuiz() bool {
	return m.QuizID != ""
}

func (t *Training) HasFinalExam() bool {
	return t.FinalExamQuizID != ""
}

// ModuleIndex returns the position of moduleID in the ordered listing, or -1.
func (t *Training) ModuleIndex(moduleID string) int {
	for i, m := range t.Modules {
		if m.ID == moduleID {
			return i
		}
	}
	return -1
}

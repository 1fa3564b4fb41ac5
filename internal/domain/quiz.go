package domain

import "time"

// Quiz is an assessment created by an instructor for a class. Students only
// see quizzes once they are published.
type Quiz struct {
	ID             string
	Title          string
	Description    string
	InstructorID   string
	ClassName      string
	Published      bool
	DueAt          *time.Time
	ReminderSentAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QuizResult captures a single student submission for a quiz.
type QuizResult struct {
	ID          string
	QuizID      string
	StudentID   string
	Score       int
	Total       int
	SubmittedAt time.Time
}

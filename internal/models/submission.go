package models

import "time"

// Submission is the result of one grading attempt. Only the latest attempt
// per (student, question, assignment) matters for scoring, so the store
// overwrites on that key instead of appending rows.
type Submission struct {
	StudentID       int64     `db:"student_id" json:"student_id"`
	QuestionID      int64     `db:"question_id" json:"question_id"`
	AssignmentID    int64     `db:"assignment_id" json:"assignment_id"`
	SubmittedAnswer string    `db:"submitted_answer" json:"submitted_answer"`
	IsCorrect       bool      `db:"is_correct" json:"is_correct"`
	Feedback        string    `db:"feedback" json:"feedback"`
	SubmittedAt     time.Time `db:"submitted_at" json:"submitted_at"`
}

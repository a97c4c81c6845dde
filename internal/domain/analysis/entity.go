package analysis

import (
	"strings"
	"time"
)

// StartedMessage is the webhook reply that marks a submission as accepted.
const StartedMessage = "Workflow was started"

// Record is one completed (or pending) performance analysis produced by the workflow.
type Record struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	Subject     string    `json:"subject"`
	Percentage  float64   `json:"percentage"`
	WeakTopics  string    `json:"weak_topics"`
	Conclusion  string    `json:"conclusion"` // markdown, empty until the workflow finishes
}

// WeakTopicList splits the comma separated weak topics.
func (r *Record) WeakTopicList() []string {
	var out []string
	for _, t := range strings.Split(r.WeakTopics, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Submission is the quiz performance sent to the workflow.
type Submission struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name"`
	Subject         string  `json:"subject"`
	ScorePercentage float64 `json:"score_percentage"`
	IncorrectTopics string  `json:"incorrect_topics"`
}

// Payload is the webhook wire format.
type Payload struct {
	StudentID       string  `json:"StudentID"`
	StudentName     string  `json:"StudentName"`
	QuizTopic       string  `json:"QuizTopic"`
	ScorePercentage float64 `json:"ScorePercentage"`
	IncorrectTopics string  `json:"IncorrectTopics"`
}

func (s Submission) Payload() Payload {
	return Payload{
		StudentID:       s.StudentID,
		StudentName:     s.StudentName,
		QuizTopic:       s.Subject,
		ScorePercentage: s.ScorePercentage,
		IncorrectTopics: s.IncorrectTopics,
	}
}

// Ack is an accepted webhook reply.
type Ack struct {
	StatusCode int            `json:"status_code"`
	Message    string         `json:"message"`
	Body       map[string]any `json:"body,omitempty"`
}

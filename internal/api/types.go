package api

// processURLRequest represents the request body for /process/url
type processURLRequest struct {
	URL string `json:"url"`
}

// queryRequest represents the request body for /query
type queryRequest struct {
	Query string `json:"query"`
}

// checkAnswerRequest represents the request body for /quiz/check
type checkAnswerRequest struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
}

// UploadResponse is returned by the ingestion endpoints
type UploadResponse struct {
	Message string `json:"message"`
}

// QueryResponse is returned by /query. Backends answer either with a plain
// {answer} or with a typed payload (answer, summary or quiz) carried in
// Content and Questions.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content,omitempty"`
	Questions []QuizQuestion `json:"questions,omitempty"`
}

// Text returns the displayable answer
func (r QueryResponse) Text() string {
	if r.Answer != "" {
		return r.Answer
	}
	return r.Content
}

// QuizQuestion represents a generated quiz question and its expected answer
type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerFeedback is returned by /quiz/check
type AnswerFeedback struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

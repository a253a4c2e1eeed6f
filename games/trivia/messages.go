package trivia

// Outbound message types. Every message carries its tag in Type so clients
// can switch on it without knowing the Go type.
const (
	TypeMessage      = "message"
	TypeNewQuestion  = "newQuestion"
	TypeAnswerResult = "answerResult"
	TypeGameOver     = "gameOver"
)

// Score is one scoreboard row.
type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// NoticeMessage carries join and leave notices.
type NoticeMessage struct {
	Type string `json:"type"` // "message"
	Text string `json:"text"`
}

// QuestionMessage opens a round. It never includes the correct answer.
type QuestionMessage struct {
	Type     string   `json:"type"` // "newQuestion"
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Timer    int      `json:"timer"` // seconds
	Round    uint64   `json:"round"`
}

// ResultMessage resolves a round, either by submission or by timeout.
type ResultMessage struct {
	Type          string  `json:"type"` // "answerResult"
	PlayerName    string  `json:"playerName"`
	IsCorrect     bool    `json:"isCorrect"`
	CorrectAnswer string  `json:"correctAnswer"`
	Scores        []Score `json:"scores"`
	Round         uint64  `json:"round"`
}

// GameOverMessage is the last message a room ever sends.
type GameOverMessage struct {
	Type   string `json:"type"` // "gameOver"
	Winner string `json:"winner"`
}

// Publisher delivers a message to the given connections of a room.
type Publisher interface {
	Publish(roomID string, recipients []string, msg any)
}

package calendar

type DayStatus string

const (
	DayRecorded   DayStatus = "recorded"
	DayUnrecorded DayStatus = "unrecorded"
	DayFuture     DayStatus = "future"
)

type CalendarDay struct {
	Date      string    `json:"date"`
	Status    DayStatus `json:"status"`
	Succeeded bool      `json:"succeeded"`
	IsToday   bool      `json:"isToday"`
}

type CalendarResponse struct {
	ChallengeID string         `json:"challengeId"`
	StartDate   string         `json:"startDate"`
	EndDate     string         `json:"endDate"`
	Days        []*CalendarDay `json:"days"`
}

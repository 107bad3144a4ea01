package entry

type UpsertEntryRequest struct {
	Date         string `json:"date"`
	Description  string `json:"description"`
	LearningType string `json:"learning_type,omitempty"`
}

type DescriptionResponse struct {
	Description string `json:"description"`
}

type StatsResponse struct {
	Entries   int `json:"entries"`
	TotalDays int `json:"total_days"`
}

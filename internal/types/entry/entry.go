package entry

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is the learning log record for a single calendar day.
// Date is always formatted YYYY-MM-DD and is unique across entries.
type Entry struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Date         string    `json:"date" db:"date"`
	LearningType string    `json:"learning_type" db:"learning_type"`
	Description  string    `json:"description" db:"description"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Topics a learning entry can be filed under.
const (
	TopicPython          = "Python"
	TopicDjango          = "Django"
	TopicFlask           = "Flask"
	TopicKubernetes      = "Kubernetes"
	TopicDocker          = "Docker"
	TopicGrafana         = "Grafana"
	TopicSQL             = "SQL"
	TopicNoSQL           = "NoSQL"
	TopicReact           = "React"
	TopicAngular         = "Angular"
	TopicVue             = "Vue"
	TopicTesting         = "Testing"
	TopicCICD            = "CI/CD"
	TopicDevOps          = "DevOps"
	TopicCloud           = "Cloud"
	TopicMachineLearning = "Machine Learning"
	TopicDataAnalysis    = "Data Analysis"
	TopicSecurity        = "Security"
	TopicOther           = "Other"
)

// Topics lists every valid learning type in display order.
var Topics = []string{
	TopicPython, TopicDjango, TopicFlask, TopicKubernetes, TopicDocker, TopicGrafana,
	TopicSQL, TopicNoSQL, TopicReact, TopicAngular, TopicVue, TopicTesting, TopicCICD,
	TopicDevOps, TopicCloud, TopicMachineLearning, TopicDataAnalysis, TopicSecurity, TopicOther,
}

// IsTopic reports whether name is one of Topics (exact match).
func IsTopic(name string) bool {
	for _, t := range Topics {
		if t == name {
			return true
		}
	}
	return false
}

// Filter narrows entry listings. Empty fields are ignored; dates are inclusive.
type Filter struct {
	Date         string `json:"date,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	LearningType string `json:"learning_type,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Match applies the filter to e. Text fields match case-insensitively on substrings.
func (f Filter) Match(e *Entry) bool {
	if f.Date != "" && e.Date != f.Date {
		return false
	}
	if f.StartDate != "" && e.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && e.Date > f.EndDate {
		return false
	}
	if f.LearningType != "" && !containsFold(e.LearningType, f.LearningType) {
		return false
	}
	if f.Description != "" && !containsFold(e.Description, f.Description) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

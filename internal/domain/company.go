package domain

type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"` // tech | nonTech
	Location string `json:"location"`
	LogoURL  string `json:"logoUrl,omitempty"`
}

const (
	PositionOpen      = "open"
	PositionPostponed = "postponed"
	PositionNotOpen   = "notOpen"
	PositionClosed    = "closed"
	PositionCancelled = "cancelled"
)

// Position is a stored job posting joined with its company.
type Position struct {
	ID            string  `json:"id"`
	Company       Company `json:"company"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	JobType       string  `json:"jobType"` // full-time | internship
	Season        string  `json:"season"`
	Status        string  `json:"status"`
	Hidden        bool    `json:"hidden"`
	Description   string  `json:"description,omitempty"`
	SalaryText    string  `json:"salaryText,omitempty"`
	VisaSponsored string  `json:"visaSponsored"` // yes | no | unsure
	DateAdded     string  `json:"dateAdded"`
	ClosedOn      string  `json:"closedOn,omitempty"`
}

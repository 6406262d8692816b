package resume

// Experience is one job entry. It is kept when either the title or the company is set.
type Experience struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
	JobDesc  string `json:"job_desc"`
}

// Project requires a name. Link is stored as submitted, without sanitizing.
type Project struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// Certification requires a name. Year is stored as submitted.
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer"`
	Year   string `json:"year"`
}

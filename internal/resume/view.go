package resume

import (
	"time"

	"resumify/internal/database"
)

// View is a decoded resume ready for templates.
type View struct {
	ID         uint
	Name       string
	Profession string
	Email      string
	Phone      string
	LinkedIn   string
	GitHub     string
	Bio        string
	Skills     []string

	Experiences    []Experience
	Projects       []Project
	Certifications []Certification

	Degree        string
	Institute     string
	GradYear      string
	ProfilePicURL string
	Template      string
	PdfStatus     string
	CreatedAt     time.Time
}

// NewView decodes the JSON sub-lists of r.
func NewView(r *database.Resume) (View, error) {
	experiences, err := decodeList[Experience](r.Experiences)
	if err != nil {
		return View{}, err
	}
	projects, err := decodeList[Project](r.Projects)
	if err != nil {
		return View{}, err
	}
	certifications, err := decodeList[Certification](r.Certifications)
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:             r.ID,
		Name:           r.Name,
		Profession:     r.Profession,
		Email:          r.Email,
		Phone:          r.Phone,
		LinkedIn:       r.LinkedIn,
		GitHub:         r.GitHub,
		Bio:            r.Bio,
		Skills:         SplitSkills(r.Skills),
		Experiences:    experiences,
		Projects:       projects,
		Certifications: certifications,
		Degree:         r.Degree,
		Institute:      r.Institute,
		GradYear:       r.GradYear,
		Template:       r.Template,
		PdfStatus:      r.PdfStatus,
		CreatedAt:      r.CreatedAt,
	}
	if r.ProfilePicURL != nil {
		v.ProfilePicURL = *r.ProfilePicURL
	}
	return v, nil
}

// DraftView renders an unsaved draft, e.g. to refill a form after a validation error.
func DraftView(d Draft) View {
	return View{
		Name:           d.Name,
		Profession:     d.Profession,
		Email:          d.Email,
		Phone:          d.Phone,
		LinkedIn:       d.LinkedIn,
		GitHub:         d.GitHub,
		Bio:            d.Bio,
		Skills:         d.Skills,
		Experiences:    d.Experiences,
		Projects:       d.Projects,
		Certifications: d.Certifications,
		Degree:         d.Degree,
		Institute:      d.Institute,
		GradYear:       d.GradYear,
		Template:       d.Template,
	}
}

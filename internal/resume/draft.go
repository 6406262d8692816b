package resume

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"resumify/internal/database"
	"resumify/internal/formgroup"
	"resumify/internal/templates"
)

var (
	// ErrMissingField is a validation error for a required form field.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownTemplate is returned when the selected layout is not in the catalogue.
	ErrUnknownTemplate = errors.New("unknown template")
)

var (
	experienceGroup = formgroup.Schema{
		Prefix: "experiences",
		Anchor: "job_title",
		Fields: []formgroup.Field{
			{Name: "job_title", Sanitize: true},
			{Name: "company", Sanitize: true},
			{Name: "job_desc", Sanitize: true},
		},
		Keep: formgroup.Any("job_title", "company"),
	}
	projectGroup = formgroup.Schema{
		Prefix: "projects",
		Anchor: "name",
		Fields: []formgroup.Field{
			{Name: "name", Sanitize: true},
			{Name: "description", Sanitize: true},
			{Name: "link"},
		},
		Keep: formgroup.Any("name"),
	}
	certificationGroup = formgroup.Schema{
		Prefix: "certifications",
		Anchor: "name",
		Fields: []formgroup.Field{
			{Name: "name", Sanitize: true},
			{Name: "issuer", Sanitize: true},
			{Name: "year"},
		},
		Keep: formgroup.Any("name"),
	}
)

// Draft is a validated, sanitized resume submission.
type Draft struct {
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

	Degree    string
	Institute string
	GradYear  string
	Template  string
}

// DraftFromForm builds a Draft from submitted form values.
func DraftFromForm(values url.Values, filter formgroup.TextFilter) (Draft, error) {
	text := func(key string) string {
		return filter.Sanitize(strings.TrimSpace(values.Get(key)))
	}
	plain := func(key string) string {
		return strings.TrimSpace(values.Get(key))
	}

	d := Draft{
		Name:       text("name"),
		Profession: text("profession"),
		Email:      plain("email"),
		Phone:      plain("phone"),
		LinkedIn:   plain("linkedin"),
		GitHub:     plain("github"),
		Bio:        text("bio"),
		Degree:     text("degree"),
		Institute:  text("institute"),
		GradYear:   plain("grad_year"),
		Template:   plain("template"),
	}
	if d.Name == "" {
		return Draft{}, fmt.Errorf("%w: name", ErrMissingField)
	}
	if d.Profession == "" {
		return Draft{}, fmt.Errorf("%w: profession", ErrMissingField)
	}
	if d.Template == "" {
		d.Template = templates.DefaultLayout
	}
	if _, ok := templates.Lookup(d.Template); !ok {
		return Draft{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, d.Template)
	}

	for _, s := range SplitSkills(values.Get("skills")) {
		if s = filter.Sanitize(s); s != "" {
			d.Skills = append(d.Skills, s)
		}
	}

	for _, r := range formgroup.Decode(values, experienceGroup, filter) {
		d.Experiences = append(d.Experiences, Experience{
			JobTitle: r["job_title"],
			Company:  r["company"],
			JobDesc:  r["job_desc"],
		})
	}
	for _, r := range formgroup.Decode(values, projectGroup, filter) {
		d.Projects = append(d.Projects, Project{
			Name:        r["name"],
			Description: r["description"],
			Link:        r["link"],
		})
	}
	for _, r := range formgroup.Decode(values, certificationGroup, filter) {
		d.Certifications = append(d.Certifications, Certification{
			Name:   r["name"],
			Issuer: r["issuer"],
			Year:   r["year"],
		})
	}
	return d, nil
}

// Apply overwrites every mutable field of r with the draft. Empty sub-lists become NULL.
func (d Draft) Apply(r *database.Resume) error {
	experiences, err := encodeExperiences(d.Experiences)
	if err != nil {
		return err
	}
	projects, err := encodeProjects(d.Projects)
	if err != nil {
		return err
	}
	certifications, err := encodeCertifications(d.Certifications)
	if err != nil {
		return err
	}

	r.Name = d.Name
	r.Profession = d.Profession
	r.Email = d.Email
	r.Phone = d.Phone
	r.LinkedIn = d.LinkedIn
	r.GitHub = d.GitHub
	r.Bio = d.Bio
	r.Skills = joinSkills(d.Skills)
	r.Experiences = experiences
	r.Projects = projects
	r.Certifications = certifications
	r.Degree = d.Degree
	r.Institute = d.Institute
	r.GradYear = d.GradYear
	r.Template = d.Template
	return nil
}

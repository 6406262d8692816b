package resume

import (
	"errors"
	"net/url"
	"testing"

	"resumify/internal/database"
	"resumify/internal/sanitize"
)

func baseForm() url.Values {
	return url.Values{
		"name":       {"  Ada Lovelace "},
		"profession": {"Engineer"},
		"skills":     {"Python, , Go ,"},
	}
}

func TestDraftFromFormRequiredFields(t *testing.T) {
	for _, field := range []string{"name", "profession"} {
		v := baseForm()
		v.Set(field, "   ")
		if _, err := DraftFromForm(v, sanitize.New()); !errors.Is(err, ErrMissingField) {
			t.Fatalf("%s: expected ErrMissingField, got %v", field, err)
		}
	}
}

func TestDraftFromFormTemplate(t *testing.T) {
	d, err := DraftFromForm(baseForm(), sanitize.New())
	if err != nil {
		t.Fatalf("DraftFromForm: %v", err)
	}
	if d.Template != "classic" {
		t.Fatalf("template = %q, want classic", d.Template)
	}

	v := baseForm()
	v.Set("template", "neon")
	if _, err := DraftFromForm(v, sanitize.New()); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestDraftFromFormFields(t *testing.T) {
	v := baseForm()
	v.Set("bio", "<script>x</script><b>Hi</b>")
	v.Set("experiences[0][job_title]", "Analyst")
	v.Set("experiences[0][company]", "Babbage")
	v.Set("experiences[1][job_title]", "")
	v.Set("experiences[1][company]", "")
	v.Set("projects[a][name]", "Engine")
	v.Set("projects[a][link]", "https://example.com/<x>")
	v.Set("projects[b][name]", "")
	v.Set("certifications[0][name]", "Math")
	v.Set("certifications[0][year]", "1843")

	d, err := DraftFromForm(v, sanitize.New())
	if err != nil {
		t.Fatalf("DraftFromForm: %v", err)
	}
	if d.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", d.Name)
	}
	if d.Bio != "<b>Hi</b>" {
		t.Fatalf("bio = %q", d.Bio)
	}
	if len(d.Skills) != 2 || d.Skills[0] != "Python" || d.Skills[1] != "Go" {
		t.Fatalf("skills = %v", d.Skills)
	}
	if len(d.Experiences) != 1 || d.Experiences[0].Company != "Babbage" {
		t.Fatalf("experiences = %+v", d.Experiences)
	}
	if len(d.Projects) != 1 || d.Projects[0].Link != "https://example.com/<x>" {
		t.Fatalf("projects = %+v", d.Projects)
	}
	if len(d.Certifications) != 1 || d.Certifications[0].Year != "1843" {
		t.Fatalf("certifications = %+v", d.Certifications)
	}
}

func TestApplyEmptyListsAreNull(t *testing.T) {
	d, err := DraftFromForm(baseForm(), sanitize.New())
	if err != nil {
		t.Fatal(err)
	}
	var r database.Resume
	if err := d.Apply(&r); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if r.Experiences != nil || r.Projects != nil || r.Certifications != nil {
		t.Fatal("empty sub-lists must be stored as NULL")
	}
	if r.Skills != "Python, Go" {
		t.Fatalf("skills = %q", r.Skills)
	}
}

func TestApplyRejectsInvalidEncoding(t *testing.T) {
	d := Draft{
		Name:        "Ada",
		Profession:  "Engineer",
		Template:    "classic",
		Experiences: []Experience{{JobDesc: "orphan description"}},
	}
	var r database.Resume
	if err := d.Apply(&r); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

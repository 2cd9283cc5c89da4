package profile

import (
	"bytes"
	"encoding/json"
	"strings"

	"roastreel/models"
)

// text accepts any JSON value; anything but a string decodes to "".
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = text(s)
	return nil
}

// list accepts any JSON value; anything but an array decodes to an empty list.
// Elements that do not decode keep their slot as a zero value.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]T, len(raw))
	for i, item := range raw {
		_ = json.Unmarshal(item, &out[i])
	}
	*l = out
	return nil
}

// object accepts any JSON value; anything but an object decodes to the zero value.
type object[T any] struct {
	V T
}

func (o *object[T]) UnmarshalJSON(b []byte) error {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	o.V = v
	return nil
}

type rawPosition struct {
	Title           text `json:"title"`
	CompanyName     text `json:"companyName"`
	CompanyIndustry text `json:"companyIndustry"`
	Description     text `json:"description"`
}

type rawEducation struct {
	Degree     text `json:"degree"`
	SchoolName text `json:"schoolName"`
}

type rawSkill struct {
	Name text `json:"name"`
}

type rawGeo struct {
	Full text `json:"full"`
}

// rawProfile is the subset of the profile API payload we read.
type rawProfile struct {
	FirstName      text                   `json:"firstName"`
	LastName       text                   `json:"lastName"`
	Geo            object[rawGeo]         `json:"geo"`
	ProfilePicture text                   `json:"profilePicture"`
	Headline       text                   `json:"headline"`
	Summary        text                   `json:"summary"`
	Position       list[rawPosition]      `json:"position"`
	Educations     list[rawEducation]     `json:"educations"`
	Skills         list[object[rawSkill]] `json:"skills"`
}

// Normalize maps a raw profile payload onto a ProfileRecord. It never fails:
// malformed or missing data yields empty fields.
func Normalize(raw []byte) models.ProfileRecord {
	var p rawProfile
	_ = json.Unmarshal(unwrapEnvelope(raw), &p)

	first := string(p.FirstName)
	last := string(p.LastName)

	rec := models.ProfileRecord{
		PersonalDetails: models.PersonalDetails{
			FirstName: first,
			LastName:  last,
			FullName:  strings.TrimSpace(first + " " + last),
			Location:  string(p.Geo.V.Full),
		},
		ProfilePicture: string(p.ProfilePicture),
		Headline:       string(p.Headline),
		Summary:        string(p.Summary),
		Skills:         make([]string, 0, len(p.Skills)),
	}

	if len(p.Position) > 0 {
		cur := p.Position[0]
		rec.ProfessionalBackground.CurrentRole = models.CurrentRole{
			Title:           string(cur.Title),
			CompanyName:     string(cur.CompanyName),
			CompanyIndustry: string(cur.CompanyIndustry),
		}
	}
	if len(p.Position) > 1 {
		prev := p.Position[1]
		rec.ProfessionalBackground.PreviousWorkExperience = models.PreviousWorkExperience{
			PreviousCompany:  string(prev.CompanyName),
			PreviousRole:     string(prev.Title),
			KeyContributions: string(prev.Description),
		}
	}

	for i := 0; i < len(rec.Education.Degrees) && i < len(p.Educations); i++ {
		rec.Education.Degrees[i] = models.Degree{
			Degree: string(p.Educations[i].Degree),
			School: string(p.Educations[i].SchoolName),
		}
	}

	for _, s := range p.Skills {
		if name := strings.TrimSpace(string(s.V.Name)); name != "" {
			rec.Skills = append(rec.Skills, name)
		}
	}

	return rec
}

// unwrapEnvelope returns the inner object of a {"data": {...}} response.
func unwrapEnvelope(raw []byte) []byte {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if _, direct := env["firstName"]; direct {
		return raw
	}
	inner, ok := env["data"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
		return raw
	}
	return inner
}

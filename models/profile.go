package models

// ProfileRecord is the normalized projection of a profile payload. Every field
// is always present: strings default to "", Skills to an empty list, and
// Education always holds exactly two slots.
type ProfileRecord struct {
	Handle                 string                 `json:"handle"`
	PersonalDetails        PersonalDetails        `json:"personal_details"`
	ProfilePicture         string                 `json:"profile_picture"`
	Headline               string                 `json:"headline"`
	ProfessionalBackground ProfessionalBackground `json:"professional_background"`
	Education              Education              `json:"education"`
	Summary                string                 `json:"summary"`
	Skills                 []string               `json:"skills"`
}

type PersonalDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
	Location  string `json:"location"`
}

type ProfessionalBackground struct {
	CurrentRole            CurrentRole            `json:"current_role"`
	PreviousWorkExperience PreviousWorkExperience `json:"previous_work_experience"`
}

type CurrentRole struct {
	Title           string `json:"title"`
	CompanyName     string `json:"company_name"`
	CompanyIndustry string `json:"company_industry"`
}

type PreviousWorkExperience struct {
	PreviousCompany  string `json:"previous_company"`
	PreviousRole     string `json:"previous_role"`
	KeyContributions string `json:"key_contributions"`
}

type Education struct {
	Degrees [2]Degree `json:"degrees"`
}

type Degree struct {
	Degree string `json:"degree"`
	School string `json:"school"`
}

package model

import "time"

// CV-derived entities owned by a user. Each links the owner (via the audit
// created_by) to shared lookup rows resolved by id-reference or natural-key
// get-or-create.

type UserEducation struct {
	Base
	SoftDelete
	Audit
	Grade             string     `gorm:"size:50" json:"grade"`
	Description       string     `gorm:"type:text" json:"description"`
	CurrentlyStudying bool       `json:"currently_studying"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`

	DegreeID         *uint           `json:"degree_id,omitempty"`
	Degree           *Degree         `json:"degree,omitempty"`
	SpecializationID *uint           `json:"specialization_id,omitempty"`
	Specialization   *Specialization `json:"specialization,omitempty"`
	SchoolID         *uint           `json:"school_id,omitempty"`
	School           *School         `json:"school,omitempty"`
}

type UserExperience struct {
	Base
	SoftDelete
	Audit
	JobType          string     `gorm:"size:50" json:"jobtype"`
	Description      string     `gorm:"type:text" json:"description"`
	CurrentlyWorking bool       `json:"currently_working"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`

	CompanyID  *uint     `json:"company_id,omitempty"`
	Company    *Company  `json:"company,omitempty"`
	LocationID *uint     `json:"location_id,omitempty"`
	Location   *Location `json:"location,omitempty"`
	JobTitleID *uint     `json:"jobtitle_id,omitempty"`
	JobTitle   *JobTitle `json:"jobtitle,omitempty"`
}

type UserSkill struct {
	Base
	SoftDelete
	Audit
	Level        string `gorm:"size:50" json:"level"`
	LearningYear int    `json:"learning_year"`

	SkillID *uint  `json:"skill_id,omitempty"`
	Skill   *Skill `json:"skill,omitempty"`
}

type UserInterest struct {
	Base
	SoftDelete
	Audit
	StartDate *time.Time `json:"start_date,omitempty"`

	InterestID *uint     `json:"interest_id,omitempty"`
	Interest   *Interest `json:"interest,omitempty"`
}

type UserLanguage struct {
	Base
	SoftDelete
	Audit
	Level string `gorm:"size:50" json:"level"`

	LanguageID *uint     `json:"language_id,omitempty"`
	Language   *Language `json:"language,omitempty"`
}

type UserCertificate struct {
	Base
	SoftDelete
	Audit
	CredentialID  string     `gorm:"size:255" json:"credential_id"`
	CredentialURL string     `gorm:"type:text" json:"credential_url"`
	CanExpire     bool       `json:"can_expire"`
	IssuedDate    *time.Time `json:"issued_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`

	CertificateID *uint        `json:"certificate_id,omitempty"`
	Certificate   *Certificate `json:"certificate,omitempty"`
}

// CVUpload records an uploaded CV file; parsing happens outside this layer.
type CVUpload struct {
	Base
	SoftDelete
	Audit
	URL string `gorm:"type:text;not null" json:"url"`
}

package model

// Shared lookup entities, deduplicated by natural key (name) via get-or-create.
// They carry nothing beyond the generic repository contract.

type School struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Degree struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Specialization struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Company struct {
	Base
	SoftDelete
	Audit
	NameField
}

type JobTitle struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Skill struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Interest struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Language struct {
	Base
	SoftDelete
	Audit
	NameField
	Code string `gorm:"size:8;index" json:"code"`
}

type Organization struct {
	Base
	SoftDelete
	Audit
	NameField
}

// Certificate is issued by an Organization; (name, organization) is its
// natural key.
type Certificate struct {
	Base
	SoftDelete
	Audit
	NameField
	OrganizationID uint          `gorm:"index" json:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
}

type ContentTag struct {
	Base
	SoftDelete
	Audit
	NameField
}

type Location struct {
	Base
	SoftDelete
	Audit
	City    string `gorm:"size:100" json:"city"`
	State   string `gorm:"size:100" json:"state"`
	Country string `gorm:"size:100" json:"country"`
}

type Image struct {
	Base
	SoftDelete
	Audit
	Title string `gorm:"size:255" json:"title"`
	URL   string `gorm:"type:text" json:"url"`
}

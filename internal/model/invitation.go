package model

type Invitation struct {
	Base
	SoftDelete
	Name  string `gorm:"size:255" json:"name"`
	Email string `gorm:"size:255;index;not null" json:"email"`
	Code  string `gorm:"size:64;index;not null" json:"code"`
	Used  bool   `gorm:"index" json:"used"`
}

// All returns every model for migration, leaves before owners.
func All() []any {
	return []any{
		&User{}, &Profile{}, &UserLink{}, &Role{}, &Permission{},
		&School{}, &Degree{}, &Specialization{}, &Company{}, &JobTitle{},
		&Skill{}, &Interest{}, &Language{}, &Organization{}, &Certificate{},
		&Location{}, &Image{}, &ContentTag{},
		&Room{}, &RoomCategory{}, &UserRoom{},
		&Content{}, &Comment{}, &UserContentAction{}, &UserCommentAction{},
		&UserConnection{}, &Notification{},
		&UserEducation{}, &UserExperience{}, &UserSkill{}, &UserInterest{},
		&UserLanguage{}, &UserCertificate{}, &CVUpload{}, &Invitation{},
	}
}

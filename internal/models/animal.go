package models

// StringList is stored as a JSON document so the same model works against
// postgres and the sqlite store used in tests.
type StringList []string

type Animal struct {
	BaseModel
	Name        string     `json:"name" gorm:"type:varchar(255);not null"`
	Habitat     Habitat    `json:"habitat" gorm:"type:varchar(20);not null;index"`
	Type        string     `json:"type" gorm:"type:varchar(20);not null"`
	Family      string     `json:"family" gorm:"type:varchar(255);not null;default:''"`
	Lifespan    string     `json:"lifespan" gorm:"type:varchar(255);not null;default:''"`
	Diet        string     `json:"diet" gorm:"type:varchar(255);not null;default:''"`
	Description string     `json:"description" gorm:"type:text;not null;default:''"`
	Summary     string     `json:"summary" gorm:"type:text;not null;default:''"`
	Origin      string     `json:"origin" gorm:"type:varchar(255);not null;default:''"`
	Size        string     `json:"size" gorm:"type:varchar(255);not null;default:''"`
	Prey        StringList `json:"prey" gorm:"type:text;serializer:json"`
	Predators   StringList `json:"predators" gorm:"type:text;serializer:json"`
	CardImage   string     `json:"cardImage" gorm:"type:text;not null;default:''"`
	Sound       string     `json:"sound" gorm:"type:text;not null;default:''"`
	Featured    *bool      `json:"featured" gorm:"not null;default:true"`
}

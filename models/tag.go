package models

// Tag is a label attached to posts, globally unique by name.
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Posts []Post `gorm:"many2many:post_tags;" json:"-"`
}

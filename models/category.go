package models

// Category is a named grouping for posts, globally unique by name.
// Deleting a category detaches it from posts instead of deleting them.
type Category struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Posts []Post `json:"-"`
}

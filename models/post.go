package models

import "time"

// Post represents a blog entry created by a user. The title doubles as a
// natural key: comments attach to a post by its title rather than its id.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"-"`
	Title      string    `gorm:"size:300;not null" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CategoryID *uint     `gorm:"index" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Category   *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	Tags       []Tag     `gorm:"many2many:post_tags;" json:"-"`
	Comments   []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// OwnerID reports the author of the post for authorship checks.
func (p Post) OwnerID() uint { return p.UserID }

// PostView is the wire representation of a post. Category and tags are
// exposed by name, the author by username; ids never leave the API.
type PostView struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Category  *string   `json:"category"`
	Tags      []string  `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View builds the wire representation from a post with its User, Category
// and Tags associations loaded.
func (p Post) View() PostView {
	v := PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		Author:    p.User.Username,
		Tags:      make([]string, 0, len(p.Tags)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Category != nil {
		name := p.Category.Name
		v.Category = &name
	}
	for _, t := range p.Tags {
		v.Tags = append(v.Tags, t.Name)
	}
	return v
}

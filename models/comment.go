package models

import "time"

// Comment represents a reply to a post. Parent is a nullable self-reference:
// top-level comments have no parent, replies point at an earlier comment on
// the same post. Deleting a comment takes its whole reply subtree with it.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"-"`
	ParentID  *uint     `gorm:"index" json:"-"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Replies   []Comment `gorm:"foreignKey:ParentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// OwnerID reports the author of the comment for authorship checks.
func (c Comment) OwnerID() uint { return c.UserID }

// CommentNode is the wire representation of a comment. Replies is a sequence
// of the same shape, so a node carries its entire subtree at arbitrary depth.
type CommentNode struct {
	ID        uint          `json:"id"`
	Post      string        `json:"post"`
	Content   string        `json:"content"`
	Author    string        `json:"author"`
	Parent    *uint         `json:"parent"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Replies   []CommentNode `json:"replies"`
}

// CommentForest resolves nested replies for a flat set of comment rows.
// Children are never stored as pointers on the rows themselves; they are
// looked up through a reverse index from parent id to child rows, in the
// order the rows were supplied (creation order when loaded by ascending id).
type CommentForest struct {
	byParent   map[uint][]Comment
	postTitles map[uint]string
	usernames  map[uint]string
}

// NewCommentForest indexes rows by parent id. postTitles and usernames map
// post ids and user ids to their natural keys for serialization; rows must
// contain every comment of the posts whose subtrees will be built.
func NewCommentForest(rows []Comment, postTitles, usernames map[uint]string) *CommentForest {
	f := &CommentForest{
		byParent:   make(map[uint][]Comment),
		postTitles: postTitles,
		usernames:  usernames,
	}
	for _, c := range rows {
		if c.ParentID != nil {
			f.byParent[*c.ParentID] = append(f.byParent[*c.ParentID], c)
		}
	}
	return f
}

// Node serializes a comment and, recursively, its replies. The recursion
// terminates because a parent is always created strictly before its
// children, so the parent relationship cannot form a cycle.
func (f *CommentForest) Node(c Comment) CommentNode {
	node := CommentNode{
		ID:        c.ID,
		Post:      f.postTitles[c.PostID],
		Content:   c.Content,
		Author:    f.usernames[c.UserID],
		Parent:    c.ParentID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Replies:   []CommentNode{},
	}
	for _, child := range f.byParent[c.ID] {
		node.Replies = append(node.Replies, f.Node(child))
	}
	return node
}

// Subtree returns the ids of a comment and all its descendants, used for
// cascade deletes down the reply tree.
func (f *CommentForest) Subtree(c Comment) []uint {
	ids := []uint{c.ID}
	for _, child := range f.byParent[c.ID] {
		ids = append(ids, f.Subtree(child)...)
	}
	return ids
}

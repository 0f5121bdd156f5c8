package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

// threadFixture builds a three-level thread on one post:
// c1 (root) -> c2 -> c3, plus c4 as a second root.
func threadFixture() ([]Comment, map[uint]string, map[uint]string) {
	rows := []Comment{
		{ID: 1, PostID: 10, UserID: 100, Content: "root"},
		{ID: 2, PostID: 10, UserID: 200, ParentID: uintPtr(1), Content: "reply"},
		{ID: 3, PostID: 10, UserID: 100, ParentID: uintPtr(2), Content: "reply to reply"},
		{ID: 4, PostID: 10, UserID: 200, Content: "second root"},
	}
	titles := map[uint]string{10: "Intro"}
	usernames := map[uint]string{100: "alice", 200: "bob"}
	return rows, titles, usernames
}

func TestCommentForest_NestedReplies(t *testing.T) {
	rows, titles, usernames := threadFixture()
	forest := NewCommentForest(rows, titles, usernames)

	root := forest.Node(rows[0])
	assert.Equal(t, "Intro", root.Post)
	assert.Equal(t, "alice", root.Author)
	assert.Nil(t, root.Parent)

	// Full depth is reproduced: root -> reply -> reply-to-reply
	require.Len(t, root.Replies, 1)
	reply := root.Replies[0]
	assert.Equal(t, uint(2), reply.ID)
	assert.Equal(t, "bob", reply.Author)
	require.NotNil(t, reply.Parent)
	assert.Equal(t, uint(1), *reply.Parent)

	require.Len(t, reply.Replies, 1)
	leaf := reply.Replies[0]
	assert.Equal(t, uint(3), leaf.ID)
	assert.Empty(t, leaf.Replies)
}

func TestCommentForest_ReplyAppearsExactlyOnceInSubtree(t *testing.T) {
	rows, titles, usernames := threadFixture()
	forest := NewCommentForest(rows, titles, usernames)

	root := forest.Node(rows[0])

	var count func(node CommentNode, id uint) int
	count = func(node CommentNode, id uint) int {
		n := 0
		if node.ID == id {
			n++
		}
		for _, child := range node.Replies {
			n += count(child, id)
		}
		return n
	}

	assert.Equal(t, 1, count(root, 2))
	assert.Equal(t, 1, count(root, 3))
	// The sibling root is nowhere in this subtree
	assert.Equal(t, 0, count(root, 4))
}

func TestCommentForest_SiblingOrderIsInsertionOrder(t *testing.T) {
	rows := []Comment{
		{ID: 1, PostID: 10, UserID: 100, Content: "root"},
		{ID: 2, PostID: 10, UserID: 100, ParentID: uintPtr(1), Content: "first"},
		{ID: 3, PostID: 10, UserID: 100, ParentID: uintPtr(1), Content: "second"},
		{ID: 4, PostID: 10, UserID: 100, ParentID: uintPtr(1), Content: "third"},
	}
	forest := NewCommentForest(rows, map[uint]string{10: "Intro"}, map[uint]string{100: "alice"})

	root := forest.Node(rows[0])
	require.Len(t, root.Replies, 3)
	assert.Equal(t, []uint{2, 3, 4}, []uint{root.Replies[0].ID, root.Replies[1].ID, root.Replies[2].ID})
}

func TestCommentForest_LeafHasEmptyRepliesNotNil(t *testing.T) {
	rows, titles, usernames := threadFixture()
	forest := NewCommentForest(rows, titles, usernames)

	leaf := forest.Node(rows[2])
	assert.NotNil(t, leaf.Replies)
	assert.Empty(t, leaf.Replies)
}

func TestCommentForest_Subtree(t *testing.T) {
	rows, titles, usernames := threadFixture()
	forest := NewCommentForest(rows, titles, usernames)

	assert.ElementsMatch(t, []uint{1, 2, 3}, forest.Subtree(rows[0]))
	assert.ElementsMatch(t, []uint{2, 3}, forest.Subtree(rows[1]))
	assert.Equal(t, []uint{4}, forest.Subtree(rows[3]))
}

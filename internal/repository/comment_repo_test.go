package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newComment(t *testing.T, db *gorm.DB, contentID uint, parentID *uint, author *model.User, body string) *model.Comment {
	t.Helper()
	comment := model.Comment{ContentID: contentID, ParentID: parentID, Body: body}
	comment.SetDeletedAt(model.Epoch)
	comment.SetCreatedBy(author.ID)
	require.NoError(t, db.Create(&comment).Error)
	return &comment
}

func TestGetMultiLevelsTree(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	t1 := newComment(t, db, content.ID, nil, author, "top 1")
	t2 := newComment(t, db, content.ID, nil, author, "top 2")
	t3 := newComment(t, db, content.ID, nil, author, "top 3")
	r1 := newComment(t, db, content.ID, &t1.ID, author, "reply 1")
	newComment(t, db, content.ID, &t1.ID, author, "reply 2")
	newComment(t, db, content.ID, &r1.ID, author, "reply reply 1")

	rows, err := repo.GetMultiLevels(testCtx(), TreeQuery{ContentID: content.ID, Count: 25, SubCount: 10})
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	list, err := repo.FormatNestedComments(testCtx(), rows, author)
	require.NoError(t, err)

	// Three top-level comments, each appearing exactly once, newest first.
	assert.EqualValues(t, 3, list.Total)
	require.Len(t, list.Comments, 3)
	assert.Equal(t, t3.ID, list.Comments[0].ID)
	assert.Equal(t, t2.ID, list.Comments[1].ID)
	assert.Equal(t, t1.ID, list.Comments[2].ID)

	n1 := list.Comments[2]
	assert.EqualValues(t, 2, n1.RepliesTotal)
	require.Len(t, n1.Replies, 2)

	// Third level hangs off reply 1.
	var nr1 *CommentNode
	for _, reply := range n1.Replies {
		if reply.ID == r1.ID {
			nr1 = reply
		}
	}
	require.NotNil(t, nr1)
	assert.EqualValues(t, 1, nr1.RepliesTotal)
	require.Len(t, nr1.Replies, 1)
	assert.Equal(t, "reply reply 1", nr1.Replies[0].Body)

	// Leaves carry no children and no child totals.
	assert.Zero(t, list.Comments[0].RepliesTotal)
	assert.Empty(t, list.Comments[0].Replies)

	assert.Equal(t, author.UID, n1.Author.UID)
	assert.False(t, n1.Author.Deleted)
}

func TestGetMultiLevelsClampsCounts(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	for i := 0; i < 30; i++ {
		newComment(t, db, content.ID, nil, author, fmt.Sprintf("comment %d", i))
	}

	rows, err := repo.GetMultiLevels(testCtx(), TreeQuery{ContentID: content.ID, Count: 1000, SubCount: 10})
	require.NoError(t, err)
	list, err := repo.FormatNestedComments(testCtx(), rows, nil)
	require.NoError(t, err)
	assert.Len(t, list.Comments, MaxCommentCount)
	assert.EqualValues(t, 30, list.Total)

	rows, err = repo.GetMultiLevels(testCtx(), TreeQuery{ContentID: content.ID, Count: 0, SubCount: 0})
	require.NoError(t, err)
	list, err = repo.FormatNestedComments(testCtx(), rows, nil)
	require.NoError(t, err)
	assert.Len(t, list.Comments, 1)
}

func TestGetMultiLevelsCursor(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	var all []*model.Comment
	for i := 0; i < 5; i++ {
		all = append(all, newComment(t, db, content.ID, nil, author, fmt.Sprintf("comment %d", i)))
	}

	rows, err := repo.GetMultiLevels(testCtx(), TreeQuery{ContentID: content.ID, LastID: all[2].ID, Count: 25, SubCount: 10})
	require.NoError(t, err)
	list, err := repo.FormatNestedComments(testCtx(), rows, nil)
	require.NoError(t, err)

	// Only ids below the cursor, newest first; the total ignores the cursor.
	require.Len(t, list.Comments, 2)
	assert.Equal(t, all[1].ID, list.Comments[0].ID)
	assert.Equal(t, all[0].ID, list.Comments[1].ID)
	assert.EqualValues(t, 5, list.Total)
}

func TestGetMultiLevelsIncludeCID(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	newComment(t, db, content.ID, nil, author, "other top")
	target := newComment(t, db, content.ID, nil, author, "target")
	reply := newComment(t, db, content.ID, &target.ID, author, "reply")
	newComment(t, db, content.ID, &reply.ID, author, "deep reply")

	// Rooted at the comment itself: the target is the only level-one node.
	rows, err := repo.GetMultiLevels(testCtx(), TreeQuery{
		ContentID: content.ID, ParentID: &target.ID, IncludeCID: true, Count: 25, SubCount: 10,
	})
	require.NoError(t, err)
	list, err := repo.FormatNestedComments(testCtx(), rows, nil)
	require.NoError(t, err)

	require.Len(t, list.Comments, 1)
	assert.Equal(t, target.ID, list.Comments[0].ID)
	require.Len(t, list.Comments[0].Replies, 1)
	assert.Equal(t, reply.ID, list.Comments[0].Replies[0].ID)
	require.Len(t, list.Comments[0].Replies[0].Replies, 1)
	assert.Equal(t, "deep reply", list.Comments[0].Replies[0].Replies[0].Body)

	// The total still counts the target's replies, not the target.
	assert.EqualValues(t, 1, list.Total)
}

func TestDeleteTree(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	root := newComment(t, db, content.ID, nil, author, "root")
	c1 := newComment(t, db, content.ID, &root.ID, author, "child 1")
	c2 := newComment(t, db, content.ID, &root.ID, author, "child 2")
	newComment(t, db, content.ID, &c1.ID, author, "grandchild 1")
	newComment(t, db, content.ID, &c1.ID, author, "grandchild 2")
	newComment(t, db, content.ID, &c2.ID, author, "grandchild 3")
	other := newComment(t, db, content.ID, nil, author, "unrelated")

	require.NoError(t, repo.DeleteTree(testCtx(), root.ID, author))

	// All six rows of the subtree are gone from default reads.
	var live int64
	require.NoError(t, db.Model(&model.Comment{}).
		Where("deleted_at = ? AND content_id = ?", model.Epoch, content.ID).
		Count(&live).Error)
	assert.EqualValues(t, 1, live)

	var total int64
	require.NoError(t, db.Model(&model.Comment{}).Where("content_id = ?", content.ID).Count(&total).Error)
	assert.EqualValues(t, 7, total)

	got, err := repo.Base().Get(testCtx(), other.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)

	assert.ErrorIs(t, repo.DeleteTree(testCtx(), root.ID, author), apperror.ErrNotFound)
}

func TestGetAllSingleLevel(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	top := newComment(t, db, content.ID, nil, author, "top")
	newComment(t, db, content.ID, &top.ID, author, "reply 1")
	newComment(t, db, content.ID, &top.ID, author, "reply 2")

	page, err := repo.GetAll(testCtx(), CommentQuery{ContentID: content.ID, ParentID: &top.ID, Count: 25})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Comments, 2)

	// CheckComments only answers "does it have any", capped at one.
	page, err = repo.GetAll(testCtx(), CommentQuery{ContentID: content.ID, ParentID: &top.ID, Count: 25, CheckComments: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Empty(t, page.Comments)

	// TotalOnly counts the whole content, any level.
	page, err = repo.GetAll(testCtx(), CommentQuery{ContentID: content.ID, Count: 25, TotalOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Empty(t, page.Comments)
}

func TestFormatNestedCommentsDeletedAuthor(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "gone@example.com")
	room := newTestRoom(t, db, "general")
	content := newTestContent(t, db, room.ID, author, "hello")
	repo := NewCommentRepository(db)

	newComment(t, db, content.ID, nil, author, "orphaned")
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", author.ID).
		Update("deleted_at", time.Now().UTC()).Error)

	rows, err := repo.GetMultiLevels(testCtx(), TreeQuery{ContentID: content.ID, Count: 25, SubCount: 10})
	require.NoError(t, err)
	list, err := repo.FormatNestedComments(testCtx(), rows, nil)
	require.NoError(t, err)

	require.Len(t, list.Comments, 1)
	assert.True(t, list.Comments[0].Author.Deleted)
	assert.Empty(t, list.Comments[0].Author.UID)
}

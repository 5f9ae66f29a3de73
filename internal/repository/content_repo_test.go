package repository

import (
	"testing"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/permalink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestContentCreateAndPermalink(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	repo := NewContentRepository(db)

	content, err := repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type:   model.ContentTypeArticle,
		Title:  strPtr("Hello, World! My First Article"),
		Body:   strPtr("some body"),
		RoomID: room.ID,
		Tags:   []string{"intro", "golang"},
	}, nil, author)
	require.NoError(t, err)
	assert.Equal(t, "hello-world-my-first-article", content.Permalink)
	require.Len(t, content.Tags, 2)

	link := permalink.Build(content.Permalink, content.ID)
	got, err := repo.GetByPermalink(testCtx(), link)
	require.NoError(t, err)
	assert.Equal(t, content.ID, got.ID)

	// A wrong slug with the right id is rejected.
	_, err = repo.GetByPermalink(testCtx(), "other-slug-"+permalink.EncodeID(content.ID))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestContentRequiresSubstance(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	repo := NewContentRepository(db)

	_, err := repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type:   model.ContentTypePost,
		RoomID: room.ID,
	}, nil, author)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type:   model.ContentTypePost,
		Body:   strPtr("text"),
		RoomID: 9999,
	}, nil, author)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestContentTagsSharedAcrossRows(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	room := newTestRoom(t, db, "general")
	repo := NewContentRepository(db)

	for range 2 {
		_, err := repo.CreateOrUpdate(testCtx(), ContentCreate{
			Type:   model.ContentTypePost,
			Body:   strPtr("tagged"),
			RoomID: room.ID,
			Tags:   []string{"shared"},
		}, nil, author)
		require.NoError(t, err)
	}

	var tagCount int64
	require.NoError(t, db.Model(&model.ContentTag{}).Where("name = ?", "shared").Count(&tagCount).Error)
	assert.EqualValues(t, 1, tagCount)

	tagged, err := repo.GetAll(testCtx(), ContentFilter{Tag: "shared", Count: 100})
	require.NoError(t, err)
	assert.Len(t, tagged, 2)
}

func TestContentFilters(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	viewer := newTestUser(t, db, "viewer@example.com")
	room := newTestRoom(t, db, "general")
	repo := NewContentRepository(db)
	actions := NewActionRepository(db)

	first, err := repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type: model.ContentTypePost, Body: strPtr("about golang generics"), RoomID: room.ID,
	}, nil, author)
	require.NoError(t, err)
	_, err = repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type: model.ContentTypePost, Body: strPtr("about gardening"), RoomID: room.ID,
	}, nil, author)
	require.NoError(t, err)

	// Case-insensitive substring search.
	found, err := repo.GetAll(testCtx(), ContentFilter{Search: "GOLANG", Count: 100})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	// Saved filter is viewer-relative.
	_, err = actions.SetContentSave(testCtx(), first.ID, viewer, true)
	require.NoError(t, err)
	saved, err := repo.GetAll(testCtx(), ContentFilter{SavedBy: viewer, Count: 100})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, first.ID, saved[0].ID)

	saved, err = repo.GetAll(testCtx(), ContentFilter{SavedBy: author, Count: 100})
	require.NoError(t, err)
	assert.Empty(t, saved)

	// Commented filter follows the viewer's own comments.
	comments := NewCommentRepository(db)
	_, err = comments.CreateOrUpdate(testCtx(), CommentCreate{Body: "neat", ContentID: first.ID}, nil, viewer)
	require.NoError(t, err)
	commented, err := repo.GetAll(testCtx(), ContentFilter{CommentedBy: viewer, Count: 100})
	require.NoError(t, err)
	require.Len(t, commented, 1)
	assert.Equal(t, first.ID, commented[0].ID)

	commented, err = repo.GetAll(testCtx(), ContentFilter{CommentedBy: author, Count: 100})
	require.NoError(t, err)
	assert.Empty(t, commented)
}

func TestAttachAuthors(t *testing.T) {
	db := newTestDB(t)
	author := newTestUser(t, db, "author@example.com")
	viewer := newTestUser(t, db, "viewer@example.com")
	room := newTestRoom(t, db, "general")
	repo := NewContentRepository(db)
	actions := NewActionRepository(db)
	comments := NewCommentRepository(db)

	content, err := repo.CreateOrUpdate(testCtx(), ContentCreate{
		Type: model.ContentTypePost, Body: strPtr("popular post"), RoomID: room.ID,
	}, nil, author)
	require.NoError(t, err)

	_, err = actions.SetContentLike(testCtx(), content.ID, viewer, true)
	require.NoError(t, err)
	_, err = comments.CreateOrUpdate(testCtx(), CommentCreate{Body: "nice", ContentID: content.ID}, nil, viewer)
	require.NoError(t, err)

	views, err := repo.AttachAuthors(testCtx(), []model.Content{*content}, viewer)
	require.NoError(t, err)
	require.Len(t, views, 1)

	view := views[0]
	assert.Equal(t, author.UID, view.Author.UID)
	assert.True(t, view.Liked)
	assert.False(t, view.Saved)
	assert.EqualValues(t, 1, view.LikesTotal)
	assert.EqualValues(t, 1, view.CommentsTotal)
	assert.Equal(t, permalink.Build(content.Permalink, content.ID), view.Link)

	// Unliking flips the toggle without leaving a second row.
	_, err = actions.SetContentLike(testCtx(), content.ID, viewer, false)
	require.NoError(t, err)
	views, err = repo.AttachAuthors(testCtx(), []model.Content{*content}, viewer)
	require.NoError(t, err)
	assert.False(t, views[0].Liked)
	assert.EqualValues(t, 0, views[0].LikesTotal)

	var actionRows int64
	require.NoError(t, db.Model(&model.UserContentAction{}).Count(&actionRows).Error)
	assert.EqualValues(t, 1, actionRows)
}

func TestConnectionsFeedFilter(t *testing.T) {
	db := newTestDB(t)
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")
	carol := newTestUser(t, db, "carol@example.com")
	room := newTestRoom(t, db, "general")
	contents := NewContentRepository(db)
	conns := newConnRepo(db)

	_, err := contents.CreateOrUpdate(testCtx(), ContentCreate{
		Type: model.ContentTypePost, Body: strPtr("from bob"), RoomID: room.ID,
	}, nil, bob)
	require.NoError(t, err)
	_, err = contents.CreateOrUpdate(testCtx(), ContentCreate{
		Type: model.ContentTypePost, Body: strPtr("from carol"), RoomID: room.ID,
	}, nil, carol)
	require.NoError(t, err)

	conn, err := conns.Create(testCtx(), alice, bob)
	require.NoError(t, err)
	_, err = conns.Accept(testCtx(), bob, conn.ID)
	require.NoError(t, err)

	// Only content from active connections shows up; carol is a stranger.
	feed, err := contents.GetAll(testCtx(), ContentFilter{ConnectionsOf: alice, Count: 100})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "from bob", *feed[0].Body)
}

package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDBSeq   atomic.Int64
	testUserSeq atomic.Int64
)

// newTestDB opens a fresh in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared-cache memory db alive for the test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	// ReferralCode carries a unique index, so every fixture needs its own.
	user := model.User{Email: email, UserName: email, ReferralCode: fmt.Sprintf("tst%d", testUserSeq.Add(1))}
	require.NoError(t, db.Create(&user).Error)
	profile := model.Profile{UserID: user.ID, DisplayName: email}
	profile.SetDeletedAt(model.Epoch)
	require.NoError(t, db.Create(&profile).Error)
	user.Profile = &profile
	return &user
}

func newTestRoom(t *testing.T, db *gorm.DB, name string) *model.Room {
	t.Helper()
	room := model.Room{}
	room.SetName(name)
	room.SetDeletedAt(model.Epoch)
	require.NoError(t, db.Create(&room).Error)
	return &room
}

func newTestContent(t *testing.T, db *gorm.DB, roomID uint, author *model.User, body string) *model.Content {
	t.Helper()
	content := model.Content{Type: model.ContentTypePost, Body: &body, RoomID: roomID, Permalink: "test-post"}
	content.SetDeletedAt(model.Epoch)
	content.SetCreatedBy(author.ID)
	require.NoError(t, db.Create(&content).Error)
	return &content
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testCtx() context.Context {
	return context.Background()
}

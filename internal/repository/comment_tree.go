package repository

import (
	"context"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
)

// CommentAuthor is the public identity shown on a comment. Deleted marks an
// author whose account is gone; the comment itself stays visible.
type CommentAuthor struct {
	UID         string `json:"uid,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

type CommentNode struct {
	ID        uint          `json:"id"`
	Body      string        `json:"body"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Author    CommentAuthor `json:"author"`
	Liked     bool          `json:"liked"`

	// RepliesTotal is the true child count; Replies holds only the page
	// fetched so far.
	RepliesTotal int64          `json:"replies_total"`
	Replies      []*CommentNode `json:"replies,omitempty"`
}

type CommentList struct {
	Total    int64          `json:"total"`
	Comments []*CommentNode `json:"comments"`
}

// FormatNestedComments turns the flat 3-level rows into a nested page,
// batching the author and viewer-action lookups across all levels.
func (r *CommentRepository) FormatNestedComments(ctx context.Context, rows []FlatComment, viewer *model.User) (*CommentList, error) {
	userIDs := make([]uint, 0, len(rows))
	commentIDs := make([]uint, 0, len(rows)*3)
	seenUser := map[uint]bool{}
	for _, row := range rows {
		if !seenUser[row.L1CreatedByID] {
			seenUser[row.L1CreatedByID] = true
			userIDs = append(userIDs, row.L1CreatedByID)
		}
		commentIDs = append(commentIDs, row.L1ID)
		if row.L2ID != nil {
			if !seenUser[*row.L2CreatedByID] {
				seenUser[*row.L2CreatedByID] = true
				userIDs = append(userIDs, *row.L2CreatedByID)
			}
			commentIDs = append(commentIDs, *row.L2ID)
		}
		if row.L3ID != nil {
			if !seenUser[*row.L3CreatedByID] {
				seenUser[*row.L3CreatedByID] = true
				userIDs = append(userIDs, *row.L3CreatedByID)
			}
			commentIDs = append(commentIDs, *row.L3ID)
		}
	}

	users := map[uint]*model.User{}
	if len(userIDs) > 0 {
		// Deliberately unfiltered: deleted authors still render, as a
		// placeholder.
		var authors []model.User
		if err := r.db.WithContext(ctx).Preload("Profile").
			Where("id IN ?", userIDs).Find(&authors).Error; err != nil {
			return nil, err
		}
		for i := range authors {
			users[authors[i].ID] = &authors[i]
		}
	}

	liked := map[uint]bool{}
	if viewer != nil && len(commentIDs) > 0 {
		var likedIDs []uint
		err := r.db.WithContext(ctx).Model(&model.UserCommentAction{}).
			Where("deleted_at = ? AND created_by_id = ? AND comment_id IN ? AND liked_at IS NOT NULL",
				model.Epoch, viewer.ID, commentIDs).
			Pluck("comment_id", &likedIDs).Error
		if err != nil {
			return nil, err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	return FoldComments(rows, users, liked), nil
}

func commentAuthor(u *model.User) CommentAuthor {
	if u == nil || u.IsDeleted() {
		return CommentAuthor{Deleted: true}
	}
	a := CommentAuthor{UID: u.UID}
	if u.Profile != nil {
		a.DisplayName = u.Profile.DisplayName
		a.PhotoURL = u.Profile.PhotoURL
	}
	return a
}

// FoldComments reconstructs the tree from flat rows. Rows arrive grouped by
// the per-level ranks, so each node is created on first occurrence and later
// rows only append deeper children.
func FoldComments(rows []FlatComment, users map[uint]*model.User, liked map[uint]bool) *CommentList {
	list := &CommentList{Comments: []*CommentNode{}}
	if len(rows) == 0 {
		return list
	}
	list.Total = rows[0].L1Total

	l1Index := map[uint]*CommentNode{}
	l2Index := map[uint]*CommentNode{}
	for _, row := range rows {
		n1, ok := l1Index[row.L1ID]
		if !ok {
			n1 = &CommentNode{
				ID:        row.L1ID,
				Body:      row.L1Body,
				CreatedAt: row.L1CreatedAt,
				UpdatedAt: row.L1UpdatedAt,
				Author:    commentAuthor(users[row.L1CreatedByID]),
				Liked:     liked[row.L1ID],
			}
			l1Index[row.L1ID] = n1
			list.Comments = append(list.Comments, n1)
		}
		if row.L2ID == nil {
			continue
		}
		n1.RepliesTotal = *row.L2Total

		n2, ok := l2Index[*row.L2ID]
		if !ok {
			n2 = &CommentNode{
				ID:        *row.L2ID,
				Body:      *row.L2Body,
				CreatedAt: *row.L2CreatedAt,
				UpdatedAt: *row.L2UpdatedAt,
				Author:    commentAuthor(users[*row.L2CreatedByID]),
				Liked:     liked[*row.L2ID],
			}
			l2Index[*row.L2ID] = n2
			n1.Replies = append(n1.Replies, n2)
		}
		if row.L3ID == nil {
			continue
		}
		n2.RepliesTotal = *row.L3Total
		n2.Replies = append(n2.Replies, &CommentNode{
			ID:        *row.L3ID,
			Body:      *row.L3Body,
			CreatedAt: *row.L3CreatedAt,
			UpdatedAt: *row.L3UpdatedAt,
			Author:    commentAuthor(users[*row.L3CreatedByID]),
			Liked:     liked[*row.L3ID],
		})
	}
	return list
}

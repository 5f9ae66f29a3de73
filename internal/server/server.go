package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/internal/repository"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/validator"
	"github.com/rs/zerolog"
)

// Server is the HTTP surface over the repositories. Authentication happens
// upstream; the trusted gateway forwards the caller's uid in X-User-UID.
type Server struct {
	engine *gin.Engine
	repos  *repository.Repositories
	logger zerolog.Logger
}

func New(repos *repository.Repositories, logger zerolog.Logger, corsOrigins []string) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(corsOrigins) == 1 && corsOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = corsOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-UID")
	engine.Use(cors.New(corsCfg))

	s := &Server{engine: engine, repos: repos, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api/v1")
	{
		api.GET("/notifications", s.listNotifications)
		api.GET("/notifications/count", s.countNotifications)
		api.PATCH("/notifications/read", s.markNotificationsRead)
		api.DELETE("/notifications", s.deleteNotifications)

		api.GET("/contents", s.listContents)
		api.POST("/contents", s.createContent)
		api.GET("/contents/:permalink", s.getContent)
		api.GET("/contents/:permalink/comments", s.listComments)
		api.POST("/contents/:permalink/comments", s.createComment)
		api.PUT("/contents/:permalink/like", s.likeContent)

		api.GET("/users/me/connections/counts", s.connectionCounts)
		api.POST("/connections", s.createConnection)
		api.PATCH("/connections/:id/accept", s.acceptConnection)
		api.DELETE("/connections/:id", s.deleteConnection)
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// viewer resolves the forwarded uid to a user row; nil when anonymous.
func (s *Server) viewer(c *gin.Context) (*model.User, error) {
	uid := c.GetHeader("X-User-UID")
	if uid == "" {
		return nil, nil
	}
	return s.repos.Users.GetByUID(c.Request.Context(), uid)
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperror.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryUint(c *gin.Context, key string) uint {
	val, _ := strconv.ParseUint(c.Query(key), 10, 64)
	return uint(val)
}

func queryInt(c *gin.Context, key string) int {
	val, _ := strconv.Atoi(c.Query(key))
	return val
}

func (s *Server) listNotifications(c *gin.Context) {
	uid := c.GetHeader("X-User-UID")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	notifs, err := s.repos.Notifications.GetList(c.Request.Context(), uid, repository.NotificationListQuery{
		LastID:  queryUint(c, "last_id"),
		SinceID: queryUint(c, "since_id"),
		Count:   queryInt(c, "count"),
		Unread:  c.Query("unread") == "true",
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifs})
}

func (s *Server) countNotifications(c *gin.Context) {
	uid := c.GetHeader("X-User-UID")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	count, err := s.repos.Notifications.GetCount(c.Request.Context(), uid)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type notificationIDsRequest struct {
	IDs  []uint `json:"ids"`
	Read *bool  `json:"read,omitempty"`
}

func (s *Server) markNotificationsRead(c *gin.Context) {
	uid := c.GetHeader("X-User-UID")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	var req notificationIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.repos.Notifications.MultiUpdate(c.Request.Context(), uid, req.IDs, req.Read == nil || *req.Read)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (s *Server) deleteNotifications(c *gin.Context) {
	uid := c.GetHeader("X-User-UID")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	var req notificationIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deleted, err := s.repos.Notifications.MultiDelete(c.Request.Context(), uid, req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) listContents(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := repository.ContentFilter{
		RoomID: queryUint(c, "room_id"),
		Type:   model.ContentType(c.Query("type")),
		Format: c.Query("format"),
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
		LastID: queryUint(c, "last_id"),
		Count:  queryInt(c, "count"),
	}
	if c.Query("saved") == "true" && viewer != nil {
		filter.SavedBy = viewer
	}
	if c.Query("commented") == "true" && viewer != nil {
		filter.CommentedBy = viewer
	}
	if c.Query("connections") == "true" && viewer != nil {
		filter.ConnectionsOf = viewer
	}
	contents, err := s.repos.Contents.GetAll(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	views, err := s.repos.Contents.AttachAuthors(c.Request.Context(), contents, viewer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contents": views})
}

func (s *Server) getContent(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	content, err := s.repos.Contents.GetByPermalink(c.Request.Context(), c.Param("permalink"))
	if err != nil {
		s.fail(c, err)
		return
	}
	views, err := s.repos.Contents.AttachAuthors(c.Request.Context(), []model.Content{*content}, viewer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": views[0]})
}

func (s *Server) listComments(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	content, err := s.repos.Contents.GetByPermalink(c.Request.Context(), c.Param("permalink"))
	if err != nil {
		s.fail(c, err)
		return
	}
	q := repository.TreeQuery{
		ContentID: content.ID,
		LastID:    queryUint(c, "last_id"),
		Count:     queryInt(c, "count"),
		SubCount:  queryInt(c, "sub_count"),
	}
	if parentID := queryUint(c, "parent_id"); parentID != 0 {
		q.ParentID = &parentID
		q.IncludeCID = c.Query("include_cid") == "true"
	}
	rows, err := s.repos.Comments.GetMultiLevels(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	list, err := s.repos.Comments.FormatNestedComments(c.Request.Context(), rows, viewer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func actorOf(user *model.User) model.NotificationActor {
	actor := model.NotificationActor{UID: user.UID}
	if user.Profile != nil {
		actor.DisplayName = user.Profile.DisplayName
		actor.PhotoURL = user.Profile.PhotoURL
	}
	return actor
}

// notify is fire-and-forget from the handler's perspective: a failed
// notification never fails the request that caused it.
func (s *Server) notify(c *gin.Context, in repository.NotificationInput) {
	if _, err := s.repos.Notifications.CreateNew(c.Request.Context(), in); err != nil {
		s.logger.Warn().Err(err).Str("type", string(in.Type)).Msg("emit notification")
	}
}

func (s *Server) createContent(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	var req repository.ContentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}
	content, err := s.repos.Contents.CreateOrUpdate(c.Request.Context(), req, nil, viewer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"content": content})
}

func (s *Server) createComment(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	content, err := s.repos.Contents.GetByPermalink(c.Request.Context(), c.Param("permalink"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req repository.CommentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ContentID = content.ID
	if err := validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}
	comment, err := s.repos.Comments.CreateOrUpdate(c.Request.Context(), req, nil, viewer)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Tell the content author, or the parent comment's author for replies.
	// Acting on your own thing is never notified.
	ctx := c.Request.Context()
	if req.ParentID == nil {
		if owner := s.authorOf(ctx, content.CreatedByID); owner != nil && owner.ID != viewer.ID {
			s.notify(c, repository.NotificationInput{
				UserUID: owner.UID,
				Type:    model.NotifCommentOnContent,
				Actor:   actorOf(viewer),
				Meta: model.NotificationMeta{
					Content: &model.ContentRef{ID: content.ID, Permalink: content.Permalink},
				},
			})
		}
	} else if parent, err := s.repos.Comments.Base().Get(ctx, *req.ParentID); err == nil && parent != nil {
		if owner := s.authorOf(ctx, parent.CreatedByID); owner != nil && owner.ID != viewer.ID {
			s.notify(c, repository.NotificationInput{
				UserUID: owner.UID,
				Type:    model.NotifCommentOnComment,
				Actor:   actorOf(viewer),
				Meta: model.NotificationMeta{
					Comment: &model.CommentRef{ID: parent.ID, ContentID: content.ID},
				},
			})
		}
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (s *Server) authorOf(ctx context.Context, id *uint) *model.User {
	if id == nil {
		return nil
	}
	user, err := s.repos.Users.Get(ctx, *id)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", *id).Msg("resolve author")
		return nil
	}
	return user
}

type likeRequest struct {
	Liked bool `json:"liked"`
}

func (s *Server) likeContent(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	content, err := s.repos.Contents.GetByPermalink(c.Request.Context(), c.Param("permalink"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, err := s.repos.Actions.SetContentLike(c.Request.Context(), content.ID, viewer, req.Liked)
	if err != nil {
		s.fail(c, err)
		return
	}
	// A like notifies the author; taking it back retracts that notification.
	if owner := s.authorOf(c.Request.Context(), content.CreatedByID); owner != nil && owner.ID != viewer.ID {
		s.notify(c, repository.NotificationInput{
			UserUID: owner.UID,
			Type:    model.NotifLikeOnContent,
			Actor:   actorOf(viewer),
			Meta: model.NotificationMeta{
				Content: &model.ContentRef{ID: content.ID, Permalink: content.Permalink},
			},
			DeleteOnly: !req.Liked,
		})
	}
	c.JSON(http.StatusOK, gin.H{"action": action})
}

type connectionRequest struct {
	ReceiverUID string `json:"receiver_uid" validate:"required"`
}

func (s *Server) createConnection(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}
	receiver, err := s.repos.Users.GetByUID(c.Request.Context(), req.ReceiverUID)
	if err != nil {
		s.fail(c, err)
		return
	}
	conn, err := s.repos.Connections.Create(c.Request.Context(), viewer, receiver)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.notify(c, repository.NotificationInput{
		UserUID: receiver.UID,
		Type:    model.NotifNewConnectionReq,
		Actor:   actorOf(viewer),
		Meta: model.NotificationMeta{
			Connection: &model.ConnectionRef{ID: conn.ID},
		},
	})
	c.JSON(http.StatusCreated, gin.H{"connection": conn})
}

func (s *Server) acceptConnection(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	conn, err := s.repos.Connections.Accept(c.Request.Context(), viewer, uint(id))
	if err != nil {
		s.fail(c, err)
		return
	}

	// Freshen the receiver's pending-request slot in place and tell the
	// requester their request was accepted.
	s.notify(c, repository.NotificationInput{
		UserUID:     viewer.UID,
		Type:        model.NotifNewConnectionReq,
		Actor:       actorOf(viewer),
		Meta:        model.NotificationMeta{Connection: &model.ConnectionRef{ID: conn.ID, Connected: true}},
		ForceUpdate: true,
	})
	if requester := s.authorOf(c.Request.Context(), conn.CreatedByID); requester != nil {
		s.notify(c, repository.NotificationInput{
			UserUID: requester.UID,
			Type:    model.NotifConnectionAccept,
			Actor:   actorOf(viewer),
			Meta:    model.NotificationMeta{Connection: &model.ConnectionRef{ID: conn.ID, Connected: true}},
		})
	}
	c.JSON(http.StatusOK, gin.H{"connection": conn})
}

func (s *Server) deleteConnection(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	conn, err := s.repos.Connections.Delete(c.Request.Context(), viewer, uint(id))
	if err != nil {
		s.fail(c, err)
		return
	}

	// Cancelling a pending request takes the notification back from the
	// receiver's feed.
	if !conn.Connected && conn.CreatedByID != nil && *conn.CreatedByID == viewer.ID {
		if receiver, err := s.repos.Users.Get(c.Request.Context(), conn.ReceiverID); err == nil && receiver != nil {
			s.notify(c, repository.NotificationInput{
				UserUID:    receiver.UID,
				Type:       model.NotifNewConnectionReq,
				Actor:      actorOf(viewer),
				Meta:       model.NotificationMeta{Connection: &model.ConnectionRef{ID: conn.ID}},
				DeleteOnly: true,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"connection": conn})
}

func (s *Server) connectionCounts(c *gin.Context) {
	viewer, err := s.viewer(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if viewer == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user"})
		return
	}
	counts, err := s.repos.Connections.GetConnCounts(c.Request.Context(), viewer.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

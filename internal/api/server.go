package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/anochat/internal/chat"
	"github.com/anochat/internal/config"
)

// Store covers the chat storage operations the handlers use.
type Store interface {
	EnsureSession(ctx context.Context, sessionID, userID int64, ipAddress string) error
	AddMessage(ctx context.Context, m chat.Message) (string, error)
	UpdateRoomState(ctx context.Context, roomID int64, state chat.RoomState) error
	RoomInfoByGroup(ctx context.Context, groupID int64) (chat.RoomInfo, error)
	ListMessages(ctx context.Context, roomID int64, after time.Time, viewerID int64) ([]chat.MessageListing, error)
	SoftDeleteMessage(ctx context.Context, id string) error
	SetSkippedMessage(ctx context.Context, messageID string) error
	MessageInfo(ctx context.Context, id string) (senderUserID int64, parentID *string, err error)
	Message(ctx context.Context, id string) (chat.Message, error)
	SetMessageFile(ctx context.Context, messageID string, fileID int64) (bool, error)
	RoomsForUser(ctx context.Context, userID int64) ([]chat.RoomListing, error)
	UserByAccountID(ctx context.Context, accountID string) (int64, error)
	CreateAnonymousUser(ctx context.Context, accountID string) (int64, error)
	CreateSession(ctx context.Context, userID int64, ipAddress string) (int64, error)
	InsertFilePath(ctx context.Context, path, contentType string) (int64, error)
	FilePath(ctx context.Context, id int64) (path, contentType string, err error)
}

// Queue enqueues detached AI reply jobs.
type Queue interface {
	EnqueueAIReply(ctx context.Context, roomID int64, messageID string) error
}

// Synthesizer converts message text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, model, voice string, messageID *string) ([]byte, string, error)
}

// FileStore persists binary artifacts and returns their file names.
type FileStore interface {
	Save(data []byte, contentType string) (string, error)
}

// Server is the HTTP API server.
type Server struct {
	echo  *echo.Echo
	cfg   *config.Config
	store Store
	queue Queue
	tts   Synthesizer
	files FileStore
}

// NewServer creates the API server with all routes registered.
func NewServer(cfg *config.Config, store Store, queue Queue, tts Synthesizer, files FileStore) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:  e,
		cfg:   cfg,
		store: store,
		queue: queue,
		tts:   tts,
		files: files,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// Stored audio artifacts are public once their URL is known.
	s.echo.Static("/files", s.cfg.Files.Dir)

	account := s.echo.Group("/api/account")
	account.POST("/login", s.login,
		middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(loginRatePerSecond))))
	account.POST("/logout", s.logout)

	authed := s.echo.Group("/api", requireAuth(s.cfg.Server.AuthSecret, s.store))
	authed.GET("/rooms", s.listRooms)
	authed.GET("/message/many", s.listMessages)
	authed.POST("/message/send", s.sendMessage)
	authed.DELETE("/message/delete", s.deleteMessage)
	authed.PATCH("/message/hide-from-ai", s.hideFromAI)
	authed.GET("/message/speech", s.speech)
}

// Start begins the API server and blocks until an interrupt signal, then
// shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// httpError maps storage-layer sentinel errors to HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, chat.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.Is(err, chat.ErrRoomBusy):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI is busy in this room")
	case errors.Is(err, chat.ErrNotActionable):
		return echo.NewHTTPError(http.StatusConflict, "nothing to do")
	case errors.Is(err, chat.ErrChainTooLong):
		return echo.NewHTTPError(http.StatusInternalServerError, "message chain too long")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

package api

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// speech returns the URL of the read-aloud audio for a message, lazily
// synthesizing it on first request. The file reference is attached exactly
// once; a losing racer serves whatever the winner stored.
func (s *Server) speech(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx := c.Request().Context()

	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return httpError(err)
	}

	// A deleted message is gone for reading aloud too, even when an
	// earlier request already attached an artifact.
	if msg.DateDeleted != nil || msg.Content == nil {
		return echo.NewHTTPError(http.StatusNotFound, "message has no readable content")
	}

	if msg.FileID != nil {
		return s.fileURL(c, *msg.FileID)
	}

	audio, contentType, err := s.tts.Synthesize(ctx, *msg.Content, s.cfg.AI.Model, s.cfg.AI.Voice, &id)
	if err != nil {
		log.Error().Err(err).Str("message_id", id).Msg("Speech synthesis failed")
		return echo.NewHTTPError(http.StatusBadGateway, "speech synthesis failed")
	}

	name, err := s.files.Save(audio, contentType)
	if err != nil {
		return httpError(err)
	}

	fileID, err := s.store.InsertFilePath(ctx, name, contentType)
	if err != nil {
		return httpError(err)
	}

	attached, err := s.store.SetMessageFile(ctx, id, fileID)
	if err != nil {
		return httpError(err)
	}
	if !attached {
		// A concurrent request synthesized first; its artifact wins.
		msg, err = s.store.Message(ctx, id)
		if err != nil {
			return httpError(err)
		}
		if msg.FileID != nil {
			return s.fileURL(c, *msg.FileID)
		}
	}

	return s.fileURL(c, fileID)
}

func (s *Server) fileURL(c echo.Context, fileID int64) error {
	filePath, _, err := s.store.FilePath(c.Request().Context(), fileID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"url": "/files/" + path.Base(filePath),
	})
}

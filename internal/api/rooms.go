package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type roomResponse struct {
	RoomID         int64      `json:"roomId"`
	GroupID        int64      `json:"groupId"`
	RoomName       string     `json:"roomName"`
	GroupName      string     `json:"groupName"`
	LatestDateSent *time.Time `json:"latestDateSent,omitempty"`
	LatestMessage  *string    `json:"latestMessage,omitempty"`
}

// listRooms returns the rooms the caller is a member of with their latest
// message preview.
func (s *Server) listRooms(c echo.Context) error {
	rooms, err := s.store.RoomsForUser(c.Request().Context(), currentUserID(c))
	if err != nil {
		return httpError(err)
	}

	resp := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		resp = append(resp, roomResponse{
			RoomID:         r.RoomID,
			GroupID:        r.GroupID,
			RoomName:       r.RoomName,
			GroupName:      r.GroupName,
			LatestDateSent: r.LatestDateSent,
			LatestMessage:  r.LatestMessage,
		})
	}

	return c.JSON(http.StatusOK, resp)
}

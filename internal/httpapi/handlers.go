package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// SendMessage handles POST /api/messages.
func (s *Server) SendMessage(c echo.Context) error {
	profile, ok := currentProfile(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := s.relay.Send(c.Request().Context(), profile.UserID, req.RecipientID, req.Body)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// ListConversation handles GET /api/conversations/:peer/messages.
// The optional "after" query parameter (RFC 3339) pages by the last-seen
// message timestamp.
func (s *Server) ListConversation(c echo.Context) error {
	profile, ok := currentProfile(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}

	var after time.Time
	if raw := c.QueryParam("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid after cursor")
		}
		after = parsed
	}

	msgs, err := s.relay.ListConversation(c.Request().Context(), profile.UserID, c.Param("peer"), after)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// ListRecent handles GET /api/conversations: the caller's recent
// conversations, newest first.
func (s *Server) ListRecent(c echo.Context) error {
	profile, ok := currentProfile(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}

	entries, err := s.relay.ListRecent(c.Request().Context(), profile.UserID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// DeleteConversation handles DELETE /api/conversations/:peer. Deletion is
// one-sided: only the caller's log and index entry are removed.
func (s *Server) DeleteConversation(c echo.Context) error {
	profile, ok := currentProfile(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}

	if err := s.relay.DeleteConversation(c.Request().Context(), profile.UserID, c.Param("peer")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

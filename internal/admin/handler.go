package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/notifier"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const queryTimeout = 5 * time.Second

type sessionView struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
	LoggedIn   bool      `json:"logged_in"`
	User       string    `json:"user,omitempty"`
	Streams    int       `json:"streams"`
}

type statusView struct {
	Stream string `json:"stream"`
	Data   string `json:"data"`
	Code   string `json:"code"`
	Text   string `json:"text,omitempty"`
}

type serviceView struct {
	Name                 string     `json:"name"`
	ID                   uint16     `json:"id"`
	Vendor               string     `json:"vendor,omitempty"`
	IsSource             bool       `json:"is_source"`
	State                string     `json:"state"`
	AcceptingRequests    bool       `json:"accepting_requests"`
	Capabilities         []string   `json:"capabilities"`
	DictionariesProvided []string   `json:"dictionaries_provided"`
	DictionariesUsed     []string   `json:"dictionaries_used"`
	Status               statusView `json:"status"`
}

type stateRequest struct {
	State string `json:"state" binding:"required"`
	Text  string `json:"text"`
}

func (s *Server) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Health check passed.",
	})
}

// query runs fn on the dispatch goroutine on behalf of a request.
func (s *Server) query(c *gin.Context, fn func(ctx context.Context, pub *core.PubContext)) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	if err := s.pub.Do(ctx, fn); err != nil {
		s.logger.Warn("failed to query provider state", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) handleListSessions(c *gin.Context) {
	var views []sessionView
	ok := s.query(c, func(_ context.Context, pub *core.PubContext) {
		for _, cs := range pub.Sessions().List() {
			views = append(views, sessionView{
				ID:         string(cs.Handle()),
				RemoteAddr: cs.RemoteAddr(),
				CreatedAt:  cs.CreatedAt(),
				LoggedIn:   cs.LoggedIn(),
				User:       cs.User(),
				Streams:    cs.StreamCount(),
			})
		}
	})
	if !ok {
		return
	}
	if views == nil {
		views = []sessionView{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (s *Server) handleListStoredSessions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session store configured"})
		return
	}
	metas, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list stored sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": metas})
}

func (s *Server) handleListServices(c *gin.Context) {
	var views []serviceView
	ok := s.query(c, func(_ context.Context, pub *core.PubContext) {
		for _, svc := range pub.Directory().All() {
			views = append(views, newServiceView(svc))
		}
	})
	if !ok {
		return
	}
	if views == nil {
		views = []serviceView{}
	}
	c.JSON(http.StatusOK, gin.H{"services": views})
}

func newServiceView(svc *core.ServiceInfo) serviceView {
	caps := make([]string, 0)
	for _, t := range svc.Capabilities() {
		caps = append(caps, t.String())
	}
	st := svc.Status()
	return serviceView{
		Name:                 svc.Name,
		ID:                   svc.ID,
		Vendor:               svc.Vendor,
		IsSource:             svc.IsSource,
		State:                svc.State().String(),
		AcceptingRequests:    svc.AcceptingRequests(),
		Capabilities:         caps,
		DictionariesProvided: nonNil(svc.DictionariesProvided()),
		DictionariesUsed:     nonNil(svc.DictionariesUsed()),
		Status: statusView{
			Stream: st.StreamState.String(),
			Data:   st.DataState.String(),
			Code:   st.Code.String(),
			Text:   st.Text,
		},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// handleSetServiceState moves a service up or down. With a sending notifier
// the change is published and applied by every watching instance, this one
// included; otherwise it is applied here directly.
func (s *Server) handleSetServiceState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	update := &notifier.StateUpdate{
		Service: c.Param("name"),
		State:   req.State,
		Text:    req.Text,
		At:      time.Now(),
	}
	if err := update.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.notifier != nil && s.notifier.CanSend() {
		if err := s.notifier.NotifyUpdate(c.Request.Context(), update); err != nil {
			s.logger.Error("failed to publish state update", zap.String("service", update.Service), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"service": update.Service, "state": update.State})
		return
	}

	var applyErr error
	if !s.query(c, func(_ context.Context, pub *core.PubContext) {
		applyErr = notifier.Apply(pub.Directory(), update)
	}) {
		return
	}
	if applyErr != nil {
		status := http.StatusBadRequest
		if errors.Is(applyErr, notifier.ErrUnknownService) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": applyErr.Error()})
		return
	}
	s.logger.Info("service state changed", zap.String("service", update.Service), zap.String("state", update.State))
	c.JSON(http.StatusOK, gin.H{"service": update.Service, "state": update.State})
}

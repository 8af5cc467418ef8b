package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dply/internal/model"
	"dply/internal/orchestrator"
	"dply/internal/store"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.users.FindByUsername(c.Request.Context(), req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		// Identical response for unknown user and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := generateToken(user.Username, s.cfg.Auth.JWTSecret, s.cfg.Auth.TokenTTL.Std())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp})
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user := &model.User{Username: req.Username, PasswordHash: hash}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// requester resolves the authenticated user behind the request.
func (s *Server) requester(c *gin.Context) (*model.User, bool) {
	val, ok := c.Get(claimsContextKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no user context"})
		return nil, false
	}
	claims := val.(*Claims)
	user, err := s.users.FindByUsername(c.Request.Context(), claims.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return nil, false
	}
	return user, true
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

type createEnvironmentRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) createEnvironment(c *gin.Context) {
	user, ok := s.requester(c)
	if !ok {
		return
	}
	var req createEnvironmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	env, err := s.environments.Create(c.Request.Context(), orchestrator.CreateSpec{
		Name:        req.Name,
		Description: req.Description,
	}, user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, env)
}

func (s *Server) listEnvironments(c *gin.Context) {
	envs, err := s.environments.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envs)
}

func (s *Server) getEnvironment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	env, err := s.environments.FindByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (s *Server) deleteEnvironment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.environments.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) cancelProvisioning(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cancelled := s.environments.CancelProvision(id)
	c.JSON(http.StatusAccepted, gin.H{"cancelled": cancelled})
}

func (s *Server) myEnvironments(c *gin.Context) {
	user, ok := s.requester(c)
	if !ok {
		return
	}
	bindings, err := s.environments.BindingsForUser(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bindings)
}

type createTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createTeam(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := s.teams.Create(c.Request.Context(), id, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (s *Server) listTeams(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	teams, err := s.teams.FindByEnvironment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

// writeError translates domain errors into HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, orchestrator.ErrNameTaken),
		errors.Is(err, orchestrator.ErrEnvironmentNotReady),
		errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrInvalidName),
		errors.Is(err, orchestrator.ErrMissingRequester):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bizportal/internal/database"
	"bizportal/internal/middleware"
	"bizportal/internal/models"
	"bizportal/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func startSession(c *gin.Context, u *models.User) error {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(middleware.SessionUserID, u.ID)
	sess.Set(middleware.SessionRole, string(u.Role))
	middleware.SetCurrentUser(c, u)
	return sess.Save()
}

// landing is where a user goes after signing in.
func landing(u *models.User) string {
	if u.Role == models.RoleClient {
		return "/portal"
	}
	return "/dashboard"
}

func ShowRegister(c *gin.Context) {
	render(c, http.StatusOK, "register.html", gin.H{"error": ""})
}

type registerForm struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Name     string `form:"name" json:"name" binding:"max=255"`
	Password string `form:"password" json:"password" binding:"required,min=8,max=72"`
}

func Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "register.html", gin.H{"error": "Enter a valid email and a password of at least 8 characters."})
		return
	}

	user, err := services.RegisterUser(c.Request.Context(), database.DB, services.RegisterInput(form))
	if errors.Is(err, services.ErrEmailTaken) {
		render(c, http.StatusBadRequest, "register.html", gin.H{"error": "That email is already registered."})
		return
	}
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "register failed", "error", err)
		render(c, http.StatusInternalServerError, "register.html", gin.H{"error": "Could not create your account."})
		return
	}
	if err := startSession(c, user); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to save session", "error", err)
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func ShowLogin(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{"error": "", "OAuthEnabled": deps.OAuth != nil})
}

type loginForm struct {
	Email    string `form:"email" json:"email" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

func Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "login.html", gin.H{"error": "Enter your email and password."})
		return
	}

	user, err := services.Authenticate(c.Request.Context(), database.DB, form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			slog.ErrorContext(c.Request.Context(), "login failed", "error", err)
		}
		render(c, http.StatusBadRequest, "login.html", gin.H{"error": "Invalid email or password.", "OAuthEnabled": deps.OAuth != nil})
		return
	}
	if err := startSession(c, user); err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to save session", "error", err)
	}
	c.Redirect(http.StatusFound, landing(user))
}

func Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/login")
}

// JSON variants

func APIRegister(c *gin.Context) {
	var form registerForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := services.RegisterUser(c.Request.Context(), database.DB, services.RegisterInput(form))
	if err != nil {
		fail(c, err)
		return
	}
	if err := startSession(c, user); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func APILogin(c *gin.Context) {
	var form loginForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := services.Authenticate(c.Request.Context(), database.DB, form.Email, form.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	if err := startSession(c, user); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func APILogout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func Me(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": u, "organization": u.Organization})
}

// OAuth (WorkOS AuthKit)

func OAuthLogin(c *gin.Context) {
	if deps.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "single sign-on is not configured"})
		return
	}
	state := uuid.NewString()
	sess := sessions.Default(c)
	sess.Set(middleware.SessionState, state)
	if err := sess.Save(); err != nil {
		fail(c, err)
		return
	}

	url, err := deps.OAuth.AuthorizationURL(state)
	if err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func OAuthCallback(c *gin.Context) {
	if deps.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "single sign-on is not configured"})
		return
	}
	sess := sessions.Default(c)
	want, _ := sess.Get(middleware.SessionState).(string)
	code := strings.TrimSpace(c.Query("code"))
	if want == "" || c.Query("state") != want || code == "" {
		c.Redirect(http.StatusFound, "/login?error=oauth")
		return
	}

	ctx := c.Request.Context()
	identity, err := deps.OAuth.Authenticate(ctx, code)
	if err != nil {
		slog.WarnContext(ctx, "oauth authentication failed", "error", err)
		c.Redirect(http.StatusFound, "/login?error=oauth")
		return
	}
	user, err := services.UpsertOAuthUser(ctx, database.DB, identity)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert oauth user", "error", err, "email", identity.Email)
		c.Redirect(http.StatusFound, "/login?error=oauth")
		return
	}
	if err := startSession(c, user); err != nil {
		slog.ErrorContext(ctx, "failed to save session", "error", err)
	}
	slog.InfoContext(ctx, "user authenticated", "user_id", user.ID, "provider", "workos")
	c.Redirect(http.StatusFound, landing(user))
}

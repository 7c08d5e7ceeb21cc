package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"admitchat/internal/auth"
	"admitchat/internal/models"
	"admitchat/internal/redis"
	"admitchat/internal/relay"
	"admitchat/internal/service/account"
	"admitchat/internal/service/conversation"
	"admitchat/internal/service/faq"
)

// Handler wires HTTP routes to the account, conversation, and FAQ services
// and exposes the relay's websocket endpoint.
type Handler struct {
	accounts      *account.Service
	conversations *conversation.Service
	faq           *faq.Service
	auth          *auth.Service
	hub           *relay.Hub
	cache         *redis.Client
}

// NewHandler constructs a Handler instance. cache may be nil.
func NewHandler(accounts *account.Service, conversations *conversation.Service, faqService *faq.Service, authService *auth.Service, hub *relay.Hub, cache *redis.Client) *Handler {
	return &Handler{
		accounts:      accounts,
		conversations: conversations,
		faq:           faqService,
		auth:          authService,
		hub:           hub,
		cache:         cache,
	}
}

func (h *Handler) authorizedIdentity(c *gin.Context) (models.Identity, bool) {
	ident, ok := auth.IdentityFromContext(c)
	if !ok || ident.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return models.Identity{}, false
	}
	return ident, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/ws", h.hub.ServeWS)

	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)

	faqRoutes := api.Group("/faq")
	faqRoutes.POST("/chat", h.faqChat)
	faqRoutes.GET("/categories", h.faqCategories)
	faqRoutes.GET("/questions", h.faqQuestions)

	protected := api.Group("")
	protected.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	protected.POST("/users/logout", h.logoutUser)
	protected.POST("/messages", h.sendMessage)
	protected.GET("/messages", h.getMessages)
	protected.GET("/chats", h.listChatPartners)
	protected.GET("/chats/summaries", h.listChatSummaries)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"created_at": user.CreatedAt,
		"admin":      user.ID == h.conversations.AdminID(),
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	if _, ok := h.authorizedIdentity(c); !ok {
		return
	}
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) sendMessage(c *gin.Context) {
	ident, ok := h.authorizedIdentity(c)
	if !ok {
		return
	}
	var req conversation.SendInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := h.conversations.Send(c.Request.Context(), ident, req)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage),
			errors.Is(err, conversation.ErrReceiverRequired),
			errors.Is(err, conversation.ErrSelfMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, conversation.ErrUnknownReceiver):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) getMessages(c *gin.Context) {
	ident, ok := h.authorizedIdentity(c)
	if !ok {
		return
	}
	messages, err := h.conversations.History(c.Request.Context(), ident, conversation.HistoryQuery{
		UserID: c.Query("userId"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) listChatPartners(c *gin.Context) {
	ident, ok := h.authorizedIdentity(c)
	if !ok {
		return
	}
	partners, err := h.conversations.Partners(c.Request.Context(), ident)
	if err != nil {
		if errors.Is(err, conversation.ErrNotAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": partners})
}

func (h *Handler) listChatSummaries(c *gin.Context) {
	ident, ok := h.authorizedIdentity(c)
	if !ok {
		return
	}
	summaries, err := h.conversations.Summaries(c.Request.Context(), ident)
	if err != nil {
		if errors.Is(err, conversation.ErrNotAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

type faqChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

func (h *Handler) faqChat(c *gin.Context) {
	var req faqChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	resp, err := h.faq.Match(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) faqCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.faq.Categories()})
}

func (h *Handler) faqQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"test_questions": h.faq.TestQuestions()})
}

func (h *Handler) health(c *gin.Context) {
	faqs, questions := h.faq.Counts()
	payload := gin.H{
		"status":          "healthy",
		"total_faqs":      faqs,
		"total_questions": questions,
		"api_version":     "1.0.0",
	}
	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			payload["cache"] = "unavailable"
		} else {
			payload["cache"] = "ok"
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

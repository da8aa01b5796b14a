// Command devserver is an in-memory chat server speaking the same REST and
// websocket contract as the production service. It exists so the client can
// be exercised end to end on a laptop: state lives in maps and is gone on
// restart.
package main

import (
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"chatsync/client/internal/models"
)

const tokenTTL = 72 * time.Hour

type account struct {
	user         models.User
	passwordHash []byte
}

type roomState struct {
	room    models.Room
	members map[int64]bool
}

type server struct {
	mu     sync.Mutex
	secret []byte

	nextUserID    int64
	nextRoomID    int64
	nextMessageID int64

	usersByEmail map[string]*account
	usersByID    map[int64]*account
	rooms        map[int64]*roomState
	messages     map[int64][]models.Message

	hub *hub
}

func newServer(secret []byte) *server {
	return &server{
		secret:       secret,
		usersByEmail: make(map[string]*account),
		usersByID:    make(map[int64]*account),
		rooms:        make(map[int64]*roomState),
		messages:     make(map[int64][]models.Message),
		hub:          newHub(),
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	secret := os.Getenv("DEVSERVER_JWT_SECRET")
	if secret == "" {
		secret = "devserver-not-a-secret"
	}
	addr := os.Getenv("DEVSERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	s := newServer([]byte(secret))
	r := gin.Default()

	apiGroup := r.Group("/api")
	apiGroup.POST("/register", s.handleRegister)
	apiGroup.POST("/login", s.handleLogin)

	authed := apiGroup.Group("")
	authed.Use(s.requireAuth)
	authed.POST("/refresh", s.handleRefresh)
	authed.POST("/logout", s.handleLogout)
	authed.GET("/my-rooms", s.handleMyRooms)
	authed.GET("/rooms", s.handleDiscoverableRooms)
	authed.POST("/rooms", s.handleCreateRoom)
	authed.POST("/rooms/:id/join", s.handleJoinRoom)
	authed.POST("/rooms/:id/leave", s.handleLeaveRoom)
	authed.DELETE("/rooms/:id", s.handleDeleteRoom)
	authed.GET("/rooms/:id/messages", s.handleMessages)
	authed.POST("/rooms/:id/messages", s.handlePostMessage)

	r.GET("/ws", s.serveWebSocket)

	srv := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Printf("devserver listening on %s", addr)
	log.Fatal(srv.ListenAndServe())
}

func (s *server) issueToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iss":     "chatsync-devserver",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *server) parseToken(tokenString string) (int64, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return 0, err
	}
	id, ok := claims["user_id"].(float64)
	if !ok {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return int64(id), nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return c.Query("token")
}

// requireAuth validates the bearer token and stashes the user id in the
// request context.
func (s *server) requireAuth(c *gin.Context) {
	tok := bearerToken(c)
	if tok == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
		return
	}
	userID, err := s.parseToken(tok)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64("userID")
}

func (s *server) handleRegister(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hashing password"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByEmail[req.Email]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	s.nextUserID++
	acc := &account{
		user:         models.User{ID: s.nextUserID, Name: req.Name, Email: req.Email},
		passwordHash: hash,
	}
	s.usersByEmail[req.Email] = acc
	s.usersByID[acc.user.ID] = acc
	c.JSON(http.StatusCreated, gin.H{"user": acc.user})
}

func (s *server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	acc, ok := s.usersByEmail[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.issueToken(acc.user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issuing token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": acc.user})
}

func (s *server) handleRefresh(c *gin.Context) {
	userID := currentUserID(c)
	s.mu.Lock()
	acc, ok := s.usersByID[userID]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	token, err := s.issueToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issuing token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": acc.user})
}

func (s *server) handleLogout(c *gin.Context) {
	// Tokens are stateless here; nothing to invalidate.
	c.Status(http.StatusNoContent)
}

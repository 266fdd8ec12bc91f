package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"kamati-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
)

// TokenStore is what the auth handler needs from login-token persistence.
type TokenStore interface {
	Create(ctx context.Context, token *models.LoginToken) error
	FindByToken(ctx context.Context, token string) (*models.LoginToken, error)
	MarkUsed(ctx context.Context, token string) error
	CountRecentByEmail(ctx context.Context, email string, duration time.Duration) (int64, error)
}

// AuthHandler implements passwordless magic-link sign-in for catalog admins.
// There are no end-user accounts; the allowlist is the whole identity system.
type AuthHandler struct {
	tokens      TokenStore
	adminEmails map[string]bool
	jwtSecret   string
}

func NewAuthHandler(tokens TokenStore, adminEmails []string, jwtSecret string) *AuthHandler {
	allowed := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowed[email] = true
		}
	}
	return &AuthHandler{
		tokens:      tokens,
		adminEmails: allowed,
		jwtSecret:   jwtSecret,
	}
}

type RequestLoginRequest struct {
	Email string `json:"email"`
}

// --- POST /auth/request ---

func (h *AuthHandler) RequestLogin(w http.ResponseWriter, r *http.Request) {
	var req RequestLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email is required"})
		return
	}
	if !h.adminEmails[email] {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "email is not an admin"})
		return
	}

	// Rate limiting: max 5 requests per email in 10 minutes
	count, err := h.tokens.CountRecentByEmail(r.Context(), email, 10*time.Minute)
	if err != nil {
		log.Printf("Error checking rate limit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if count >= 5 {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login requests, please try again later"})
		return
	}

	tokenValue := uuid.New().String()

	loginToken := &models.LoginToken{
		Email:     email,
		Token:     tokenValue,
		ExpiresAt: time.Now().Add(15 * time.Minute),
		IsUsed:    false,
	}
	if err := h.tokens.Create(r.Context(), loginToken); err != nil {
		log.Printf("Error creating login token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create login token"})
		return
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	verifyLink := fmt.Sprintf("%s/auth/verify?token=%s", baseURL, tokenValue)

	if err := sendLoginEmail(email, verifyLink); err != nil {
		log.Printf("Error sending email: %v", err)
		// Don't fail the request — token is created, email sending is best-effort
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "login link generated (email delivery may be delayed)",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "login link sent to your email",
	})
}

// --- GET /auth/verify ---

func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	loginToken, err := h.tokens.FindByToken(r.Context(), tokenValue)
	if err != nil {
		log.Printf("Error finding login token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if loginToken == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	if loginToken.IsExpired() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token has expired"})
		return
	}
	if loginToken.IsUsed {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token has already been used"})
		return
	}

	if err := h.tokens.MarkUsed(r.Context(), tokenValue); err != nil {
		log.Printf("Error marking token as used: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Session JWT with 7-day expiry; the email claim is the admin identity
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": loginToken.Email,
		"exp":   time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := jwtToken.SignedString([]byte(h.jwtSecret))
	if err != nil {
		log.Printf("Error signing JWT: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": tokenString,
		"email": loginToken.Email,
	})
}

// --- Helpers ---

func sendLoginEmail(to, link string) error {
	apiKey := os.Getenv("RESEND_API_KEY")
	fromEmail := os.Getenv("FROM_EMAIL")

	if apiKey == "" {
		log.Println("⚠️  RESEND_API_KEY not set, skipping email send")
		log.Printf("📧 [Dev Mode] Login link for %s: %s", to, link)
		return nil
	}

	client := resend.NewClient(apiKey)

	params := &resend.SendEmailRequest{
		From:    fromEmail,
		To:      []string{to},
		Subject: "Your KaMaTi Admin Login Link",
		Html: fmt.Sprintf(`
			<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
				<h2 style="color: #333;">KaMaTi admin sign-in</h2>
				<p>Click the button below to sign in to the notes admin:</p>
				<a href="%s" style="display: inline-block; background: #facc15; color: #1f2937; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
					Sign in
				</a>
				<p style="color: #888; font-size: 14px; margin-top: 16px;">
					This link expires in 15 minutes and can only be used once.
				</p>
				<p style="color: #aaa; font-size: 12px;">
					If you didn't request this, you can safely ignore this email.
				</p>
			</div>
		`, link),
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("📧 Email sent successfully (ID: %s)", sent.Id)
	return nil
}

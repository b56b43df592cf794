package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type GoogleOAuthHandler struct {
	DB              *gorm.DB
	JWTSecret       string
	Expires         int
	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
	// kosong = hanya akun yang sudah dibuat admin yang bisa masuk
	StaffEmailDomain string
	Log              *zap.Logger
}

func (h *GoogleOAuthHandler) oauthCfg() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.GoogleClientID,
		ClientSecret: h.GoogleSecret,
		RedirectURL:  h.GoogleRedirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func randomState(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (h *GoogleOAuthHandler) GoogleStart(c *fiber.Ctx) error {
	next := c.Query("next", "/")
	st := randomState(32)

	// simpan state + next di cookie sementara
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    st,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_next",
		Value:    next,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   10 * 60,
	})

	authURL := h.oauthCfg().AuthCodeURL(st, oauth2.AccessTypeOnline)
	return c.Redirect(authURL, http.StatusTemporaryRedirect)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *GoogleOAuthHandler) loginFail(c *fiber.Ctx, msg string) error {
	u := h.FrontendBaseURL + "/auth/login?err=" + url.QueryEscape(msg)
	return c.Redirect(u, http.StatusTemporaryRedirect)
}

// staffDomainAllowed: email dengan domain kantor boleh dibuatkan akun staff otomatis
func (h *GoogleOAuthHandler) staffDomainAllowed(email string) bool {
	if h.StaffEmailDomain == "" {
		return false
	}
	return strings.HasSuffix(email, "@"+h.StaffEmailDomain)
}

func (h *GoogleOAuthHandler) GoogleCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing code/state")
	}

	stCookie := c.Cookies("oauth_state")
	next := c.Cookies("oauth_next")
	if next == "" || !strings.HasPrefix(next, "/") {
		next = "/"
	}

	if stCookie == "" || stCookie != state {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state")
	}

	// exchange code -> token
	tok, err := h.oauthCfg().Exchange(c.Context(), code)
	if err != nil {
		h.Log.Warn("google exchange", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).SendString("Failed to exchange code")
	}

	// ambil userinfo
	client := h.oauthCfg().Client(c.Context(), tok)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to fetch userinfo")
	}
	defer resp.Body.Close()

	var gu googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Failed to decode userinfo")
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	name := strings.TrimSpace(gu.Name)
	if email == "" || !gu.VerifiedEmail {
		return h.loginFail(c, "Email Google belum terverifikasi")
	}

	var u models.User
	err = h.DB.Where("email = ?", email).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !h.staffDomainAllowed(email) {
			return h.loginFail(c, "Akun belum terdaftar, hubungi admin")
		}
		// password random, login manual tidak dipakai untuk akun ini
		hashed, herr := utils.HashPassword(randomState(24))
		if herr != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to hash password")
		}
		u = models.User{
			Name:     name,
			Email:    email,
			Password: hashed,
			Role:     models.RoleStaff,
			IsActive: true,
		}
		if err := h.DB.Create(&u).Error; err != nil {
			h.Log.Error("create google staff", zap.String("email", email), zap.Error(err))
			return h.loginFail(c, "Gagal membuat akun")
		}
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).SendString("DB error")
	default:
		if name != "" && u.Name != name {
			u.Name = name
			_ = h.DB.Save(&u).Error
		}
	}

	if !u.IsActive {
		return h.loginFail(c, "Akun tidak aktif")
	}

	// buat JWT sama seperti login biasa
	jwtToken, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to sign jwt")
	}
	setSessionCookie(c, jwtToken, h.Expires)

	// hapus cookie state
	c.Cookie(&fiber.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, Secure: false, SameSite: "Lax"})
	c.Cookie(&fiber.Cookie{Name: "oauth_next", Value: "", Path: "/", MaxAge: -1, HTTPOnly: true, Secure: false, SameSite: "Lax"})

	return c.Redirect(h.FrontendBaseURL+next, http.StatusTemporaryRedirect)
}

package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/models"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	Expires   int
	Log       *zap.Logger
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func validationFail(c *fiber.Ctx, errs FieldErrors) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": false,
		"message": "Validation error",
		"errors":  errs,
	})
}

func setSessionCookie(c *fiber.Ctx, token string, expiresMin int) {
	c.Cookie(&fiber.Cookie{
		Name:     utils.TokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   expiresMin * 60,
	})
}

func userPayload(u models.User) fiber.Map {
	return fiber.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}

// ==== STAFF (dibuat oleh admin, tidak ada register publik) ====

type CreateUserReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // staff / admin
}

func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Body request tidak valid",
		})
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = models.RoleStaff
	}

	errs := FieldErrors{}
	if name == "" {
		errs.Add("name", "Nama wajib diisi")
	}
	if email == "" {
		errs.Add("email", "Email wajib diisi")
	} else if !strings.Contains(email, "@") {
		errs.Add("email", "Format email tidak valid")
	}
	if password == "" {
		errs.Add("password", "Password wajib diisi")
	} else if len(password) < 6 {
		errs.Add("password", "Password minimal 6 karakter")
	}
	if role != models.RoleStaff && role != models.RoleAdmin {
		errs.Add("role", "Role harus staff atau admin")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	// --- Cek email sudah ada
	var existing models.User
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		dup := FieldErrors{}
		dup.Add("email", "Email sudah terdaftar")
		return validationFail(c, dup)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.Log.Error("lookup user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Terjadi kesalahan server",
		})
	}

	pw, err := utils.HashPassword(password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal memproses password",
		})
	}

	u := models.User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     role,
		IsActive: true,
	}
	if err := h.DB.Create(&u).Error; err != nil {
		h.Log.Error("create user", zap.String("email", email), zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Gagal membuat akun",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Akun berhasil dibuat",
		"data":    fiber.Map{"user": userPayload(u)},
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Invalid body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	errs := FieldErrors{}
	if email == "" {
		errs.Add("email", "Email wajib diisi")
	}
	if password == "" {
		errs.Add("password", "Password wajib diisi")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var u models.User
	if err := h.DB.Where("email = ?", email).First(&u).Error; err != nil {
		// Email tidak ditemukan -> tetap 200 agar FE tidak error
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Email atau password salah",
		})
	}

	if !u.IsActive {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Akun tidak aktif",
		})
	}

	if !utils.CheckPassword(u.Password, password) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Email atau password salah",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": false,
			"message": "Gagal membuat token",
		})
	}
	setSessionCookie(c, token, h.Expires)

	h.Log.Info("staff login", zap.String("email", u.Email))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Login berhasil",
		"data":    fiber.Map{"user": userPayload(u)},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     utils.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // hapus cookie
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout berhasil",
	})
}

// Me: siapa saya
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid := c.Locals("userId")

	var user models.User
	if err := h.DB.First(&user, "id = ?", uid).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User tidak ditemukan",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    userPayload(user),
	})
}

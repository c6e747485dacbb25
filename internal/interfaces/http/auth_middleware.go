package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/pkg/jwt"
)

// Locals keys para los claims del token en Fiber.
const (
	LocalUserID    = "user_id"
	LocalPartnerID = "partner_id"
	LocalRole      = "role"
)

// Roles del sistema.
const (
	RoleAdmin     = "ADMINISTRADOR"
	RoleTreasurer = "TESORERO"
	RoleOperator  = "OPERADOR"
	RolePartner   = "SOCIO"
)

// AuthMiddleware valida el Bearer Token JWT y copia los claims a c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		userID, partnerID, role, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalPartnerID, partnerID)
		c.Locals(LocalRole, strings.ToUpper(role))
		return c.Next()
	}
}

// RequireRole deja pasar sólo a los roles indicados. ADMINISTRADOR pasa siempre.
// Debe usarse DESPUÉS de AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = struct{}{}
	}
	allowed[RoleAdmin] = struct{}{}
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "el token no incluye rol"})
		}
		if _, ok := allowed[role]; !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para esta operación"})
		}
		return c.Next()
	}
}

func localString(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string { return localString(c, LocalUserID) }

// GetPartnerID devuelve el socio del token (vacío para personal interno).
func GetPartnerID(c *fiber.Ctx) string { return localString(c, LocalPartnerID) }

// GetRole devuelve el rol del token en mayúsculas.
func GetRole(c *fiber.Ctx) string { return localString(c, LocalRole) }

// scopedPartner socio al que se restringe la consulta: el del token si el rol
// es SOCIO, vacío (sin restricción) para el personal.
func scopedPartner(c *fiber.Ctx) string {
	if GetRole(c) == RolePartner {
		if id := GetPartnerID(c); id != "" {
			return id
		}
		// Un socio sin partner_id no puede ver facturas ajenas.
		return "-"
	}
	return ""
}

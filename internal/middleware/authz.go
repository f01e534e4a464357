package middleware

import (
	"net/http"

	"genmart/internal/service"

	"github.com/gin-gonic/gin"
)

// Permission names an action on a resource.
type Permission struct {
	Resource string
	Action   string
}

var (
	anyUser   = []service.Role{service.RoleCustomer, service.RoleStaff, service.RoleAdmin}
	staffOnly = []service.Role{service.RoleStaff, service.RoleAdmin}
	adminOnly = []service.Role{service.RoleAdmin}
)

// policy is the single source of who may do what. Ownership checks on
// individual records happen in the services.
var policy = map[Permission][]service.Role{
	{"coupon", "validate"}: anyUser,
	{"order", "create"}:    anyUser,
	{"order", "read"}:      anyUser,
	{"order", "cancel"}:    anyUser,
	{"service", "create"}:  anyUser,
	{"service", "read"}:    anyUser,
	{"service", "cancel"}:  anyUser,
	{"listing", "create"}:  anyUser,
	{"listing", "read"}:    anyUser,
	{"review", "create"}:   anyUser,
	{"wishlist", "manage"}: anyUser,

	{"order", "list_all"}:       staffOnly,
	{"order", "update_status"}:  staffOnly,
	{"order", "update_payment"}: staffOnly,
	{"service", "list_all"}:     staffOnly,
	{"service", "update"}:       staffOnly,
	{"product", "read_admin"}:   staffOnly,
	{"stats", "read"}:           staffOnly,

	{"listing", "list_all"}: adminOnly,
	{"listing", "moderate"}: adminOnly,
	{"product", "create"}:   adminOnly,
	{"product", "stock"}:    adminOnly,
	{"category", "create"}:  adminOnly,
	{"coupon", "manage"}:    adminOnly,
	{"settings", "update"}:  adminOnly,
	{"audit", "read"}:       adminOnly,
}

// Allowed reports whether role may perform action on resource. Unknown
// permissions are denied.
func Allowed(role service.Role, resource, action string) bool {
	for _, r := range policy[Permission{resource, action}] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize must run after Auth. Callers without a permitted role get 401.
func Authorize(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !Allowed(actor.Role, resource, action) {
			abort(c, http.StatusUnauthorized, "not allowed to "+action+" "+resource)
			return
		}
		c.Next()
	}
}

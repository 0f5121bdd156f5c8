package middleware

import "github.com/gin-gonic/gin"

// Owned is any resource that exposes its author. Posts and comments both
// satisfy it, so the same object-level policy gates mutation on either.
type Owned interface {
	OwnerID() uint
}

// CurrentUserID returns the authenticated caller's id stored by AuthRequired.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// IsOwner reports whether the authenticated caller authored the resource.
// Safe methods never consult this; mutating handlers call it after loading
// the target and answer 403 when it fails.
func IsOwner(ctx *gin.Context, obj Owned) bool {
	uid, ok := CurrentUserID(ctx)
	if !ok {
		return false
	}
	return obj.OwnerID() == uid
}

package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
//
// agent executes calls and records outcomes; manager is the line supervisor
// (first approval level); admin is the terminal approval level.
const (
	RoleAgent   = "agent"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

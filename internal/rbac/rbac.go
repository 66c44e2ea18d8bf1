package rbac

type Role string
type Action string

const (
	RoleManager  Role = "manager"
	RoleAuthor   Role = "author"
	RoleExternal Role = "external"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleManager:
		return true
	case RoleAuthor:
		return action == ActionRead || action == ActionWrite
	case RoleExternal:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown role strings to the least privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleManager, RoleAuthor, RoleExternal:
		return Role(role)
	default:
		return RoleExternal
	}
}

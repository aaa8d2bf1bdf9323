package rbac

// Simple default policy. Teachers run evaluations and manage their roster;
// only admins edit assessment tool trees or manage logins.
var RolePermissions = map[string][]string{
	"teacher": {
		"tree:view",
		"eval:create",
		"eval:view",
		"eval:score",
		"roster:view",
		"roster:manage",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}

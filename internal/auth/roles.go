package auth

// permissions are strings like "generate:submit", "job:read", "admin:*"
const (
	PermGenerateSubmit = "generate:submit"
	PermJobRead        = "job:read"
	PermStatsRead      = "stats:read"
	PermAdminAll       = "admin:*"
)

var roleToPerms = map[string][]string{
	"client":  {PermGenerateSubmit, PermJobRead},
	"monitor": {PermJobRead, PermStatsRead},
	"admin":   {PermAdminAll},
}

func PermsForRoles(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, 8)
	for _, r := range roles {
		if perms, ok := roleToPerms[r]; ok {
			for _, p := range perms {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

// HasPerm reports whether any of roles grants required. admin:* grants everything.
func HasPerm(roles []string, required string) bool {
	perms := PermsForRoles(roles)
	if _, ok := perms[PermAdminAll]; ok {
		return true
	}
	_, ok := perms[required]
	return ok
}

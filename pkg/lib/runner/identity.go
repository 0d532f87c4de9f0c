package runner

import (
	"fmt"
	"os/user"
	"strconv"
)

// Identity is a resolved account to run a job as.
type Identity struct {
	Name   string
	Uid    uint32
	Gid    uint32
	Groups []uint32
	Home   string
}

// LookupUser resolves an account by name, or by numeric uid when no
// account has that name.
func LookupUser(name string) (*Identity, error) {
	u, err := user.Lookup(name)
	if err != nil {
		if _, convErr := strconv.ParseUint(name, 10, 32); convErr == nil {
			u, err = user.LookupId(name)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", name, err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("user %q: bad uid %q: %w", name, u.Uid, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("user %q: bad gid %q: %w", name, u.Gid, err)
	}

	ident := &Identity{Name: u.Username, Uid: uint32(uid), Gid: uint32(gid), Home: u.HomeDir}
	// Supplementary groups are best effort; the primary gid is enough to run.
	if ids, err := u.GroupIds(); err == nil {
		for _, id := range ids {
			if g, err := strconv.ParseUint(id, 10, 32); err == nil {
				ident.Groups = append(ident.Groups, uint32(g))
			}
		}
	}
	return ident, nil
}

// Env returns the environment entries describing the account.
func (id *Identity) Env() []string {
	return []string{
		"HOME=" + id.Home,
		"USER=" + id.Name,
		"LOGNAME=" + id.Name,
	}
}

package rootaccess

import (
	"context"
	"os/user"
	"strconv"
)

// IdentityResolver derives the caller's role for the current call.
type IdentityResolver interface {
	Resolve(ctx context.Context) (Role, error)
}

// Credentials are the kernel-reported credentials of the calling process.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

type credentialsKey struct{}

// WithCredentials returns a copy of ctx carrying cred.
func WithCredentials(ctx context.Context, cred *Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, cred)
}

// CredentialsFromContext returns the credentials attached by the transport.
func CredentialsFromContext(ctx context.Context) (*Credentials, bool) {
	cred, ok := ctx.Value(credentialsKey{}).(*Credentials)
	return cred, ok && cred != nil
}

// GroupChecker checks group membership for a given user.
type GroupChecker interface {
	// IsInGroup reports whether the user identified by uid belongs to the
	// named group, or if the user's primary group (gid) matches the group.
	IsInGroup(uid, gid uint32, groupName string) bool
}

// OSGroupChecker checks group membership using the OS user/group database.
type OSGroupChecker struct{}

func (OSGroupChecker) IsInGroup(uid, gid uint32, groupName string) bool {
	grp, err := user.LookupGroup(groupName)
	if err != nil {
		return false
	}
	if strconv.FormatUint(uint64(gid), 10) == grp.Gid {
		return true
	}
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return false
	}
	groupIDs, err := u.GroupIds()
	if err != nil {
		return false
	}
	for _, g := range groupIDs {
		if g == grp.Gid {
			return true
		}
	}
	return false
}

// UIDResolver maps the peer credentials found in the call context to a role.
// Calls without credentials resolve to RoleOther.
type UIDResolver struct {
	system     map[uint32]struct{}
	shell      map[uint32]struct{}
	shellGroup string
	groups     GroupChecker
}

// NewUIDResolver builds a resolver from cfg. A nil groups disables group
// based shell membership.
func NewUIDResolver(cfg Config, groups GroupChecker) *UIDResolver {
	r := &UIDResolver{
		system:     make(map[uint32]struct{}, len(cfg.SystemUIDs)),
		shell:      make(map[uint32]struct{}, len(cfg.ShellUIDs)),
		shellGroup: cfg.ShellGroup,
		groups:     groups,
	}
	for _, uid := range cfg.SystemUIDs {
		r.system[uid] = struct{}{}
	}
	for _, uid := range cfg.ShellUIDs {
		r.shell[uid] = struct{}{}
	}
	return r
}

func (r *UIDResolver) Resolve(ctx context.Context) (Role, error) {
	cred, ok := CredentialsFromContext(ctx)
	if !ok {
		return RoleOther, nil
	}
	return r.RoleOf(cred), nil
}

// RoleOf returns the role for cred.
func (r *UIDResolver) RoleOf(cred *Credentials) Role {
	if _, ok := r.system[cred.UID]; ok {
		return RoleSystem
	}
	if _, ok := r.shell[cred.UID]; ok {
		return RoleShell
	}
	if r.groups != nil && r.shellGroup != "" && r.groups.IsInGroup(cred.UID, cred.GID, r.shellGroup) {
		return RoleShell
	}
	return RoleOther
}

package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BladedNarwhal/Nar-Bot/internal/config"
)

// RoleClient answers whether a user currently holds a role in the
// community.  Implemented by the gateway client.
type RoleClient interface {
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
}

// RosterRecorder remembers confirmed admins so the dispatcher can fan
// out to the roster without a gateway call per event.
type RosterRecorder interface {
	Remember(ctx context.Context, userID string) error
}

// RoleChecker resolves the admin capability with a short-TTL cache in
// front of gateway lookups.  Lookups fail closed: if the gateway is
// unreachable or errors, the user is treated as not holding the role,
// and the failure is not cached so the next request retries.
type RoleChecker struct {
	client   RoleClient
	roster   RosterRecorder
	roleID   string
	cacheCfg config.RoleCacheConfig
	rdb      *redis.Client // nil -> in-process cache only

	mu    sync.Mutex
	local map[string]localEntry
}

type localEntry struct {
	admin   bool
	expires time.Time
}

// NewRoleChecker builds a checker for the given admin role.  rdb may
// be nil, in which case results are cached in process memory.
func NewRoleChecker(client RoleClient, roster RosterRecorder, roleID string, cacheCfg config.RoleCacheConfig, rdb *redis.Client) *RoleChecker {
	return &RoleChecker{
		client:   client,
		roster:   roster,
		roleID:   roleID,
		cacheCfg: cacheCfg,
		rdb:      rdb,
		local:    make(map[string]localEntry),
	}
}

// IsAdmin reports whether the user holds the admin role.  Results are
// cached for the configured TTL; only the error path is uncached.
func (r *RoleChecker) IsAdmin(ctx context.Context, userID string) bool {
	if admin, ok := r.cached(ctx, userID); ok {
		return admin
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	admin, err := r.client.HasRole(lookupCtx, userID, r.roleID)
	if err != nil {
		// Capability unknown: fail closed, retry on the next request.
		log.Printf("roles: membership lookup failed for user %s: %v", userID, err)
		return false
	}

	r.store(ctx, userID, admin)
	if admin && r.roster != nil {
		if err := r.roster.Remember(ctx, userID); err != nil {
			log.Printf("roles: failed to record admin %s: %v", userID, err)
		}
	}
	return admin
}

func (r *RoleChecker) key(userID string) string {
	return r.cacheCfg.Prefix + ":" + r.roleID + ":" + userID
}

func (r *RoleChecker) cached(ctx context.Context, userID string) (admin, ok bool) {
	if r.rdb != nil {
		v, err := r.rdb.Get(ctx, r.key(userID)).Result()
		if err == nil {
			return v == "1", true
		}
		if err != redis.Nil {
			log.Printf("roles: cache read failed: %v", err)
		}
		return false, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, present := r.local[userID]
	if !present || time.Now().After(e.expires) {
		delete(r.local, userID)
		return false, false
	}
	return e.admin, true
}

func (r *RoleChecker) store(ctx context.Context, userID string, admin bool) {
	if r.rdb != nil {
		v := "0"
		if admin {
			v = "1"
		}
		if err := r.rdb.Set(ctx, r.key(userID), v, r.cacheCfg.TTL).Err(); err != nil {
			log.Printf("roles: cache write failed: %v", err)
		}
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[userID] = localEntry{admin: admin, expires: time.Now().Add(r.cacheCfg.TTL)}
}

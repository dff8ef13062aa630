// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package authz

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/portico/internal/config"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath and PolicyPath override the embedded files when they exist.
	ModelPath  string
	PolicyPath string

	// CacheTTL is how long decisions are cached; 0 disables the cache.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig uses the embedded files and a 5 minute cache.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{CacheTTL: 5 * time.Minute}
}

// EnforcerConfigFrom maps the security.casbin section.
func EnforcerConfigFrom(cfg *config.CasbinConfig) *EnforcerConfig {
	return &EnforcerConfig{
		ModelPath:  cfg.ModelPath,
		PolicyPath: cfg.PolicyPath,
		CacheTTL:   cfg.CacheTTL,
	}
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
}

// NewEnforcer loads the model and policy.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultEnforcerConfig()
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		cfg.PolicyPath = ""
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{config: cfg, enforcer: enforcer}
	if cfg.CacheTTL > 0 {
		e.cache = newEnforcementCache(cfg.CacheTTL)
	}
	policies, _ := enforcer.GetPolicy()
	groupings, _ := enforcer.GetGroupingPolicy()
	UpdatePolicyStats(len(policies), len(groupings))
	return e, nil
}

// loadEmbeddedPolicy parses CSV policy lines of the form "p, sub, obj, act"
// and "g, user, role".
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	scanner := bufio.NewScanner(strings.NewReader(policy))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return scanner.Err()
}

// Enforce reports whether role may perform action on resource.
func (e *Enforcer) Enforce(role, resource, action string) (allowed, cacheHit bool, err error) {
	if e.cache != nil {
		if allowed, ok := e.cache.get(role, resource, action); ok {
			RecordAuthzCacheHit()
			return allowed, true, nil
		}
		RecordAuthzCacheMiss()
	}

	allowed, err = e.enforcer.Enforce(role, resource, action)
	if err != nil {
		RecordAuthzError("enforce")
		return false, false, fmt.Errorf("enforcement failed: %w", err)
	}
	if e.cache != nil {
		e.cache.set(role, resource, action, allowed)
	}
	return allowed, false, nil
}

// AddPolicy adds a rule at runtime.
func (e *Enforcer) AddPolicy(sub, obj, act string) (bool, error) {
	added, err := e.enforcer.AddPolicy(sub, obj, act)
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	e.invalidate("policy_change")
	return added, nil
}

// RemovePolicy removes a rule at runtime.
func (e *Enforcer) RemovePolicy(sub, obj, act string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(sub, obj, act)
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	e.invalidate("policy_change")
	return removed, nil
}

// GetPolicy returns all policy rules.
func (e *Enforcer) GetPolicy() [][]string {
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// GetRolesForUser returns the roles a role or user inherits from.
func (e *Enforcer) GetRolesForUser(name string) ([]string, error) {
	return e.enforcer.GetRolesForUser(name)
}

// ErrNoAdapter is returned by LoadPolicy when the embedded policy is in use.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// LoadPolicy reloads the policy file.
func (e *Enforcer) LoadPolicy() error {
	if e.config.PolicyPath == "" {
		return ErrNoAdapter
	}
	err := e.enforcer.LoadPolicy()
	RecordPolicyReload(err == nil)
	if err != nil {
		return err
	}
	e.invalidate("policy_reload")
	return nil
}

func (e *Enforcer) invalidate(reason string) {
	if e.cache != nil {
		e.cache.clear()
		RecordAuthzCacheInvalidation(reason)
	}
}

// Close stops the cache janitor.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

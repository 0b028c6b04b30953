package observer

import (
	"context"

	"github.com/alem-hub/xp-observer/internal/domain/platform"
)

// Plugin identity as known to the host.
const (
	Component        = "block_xp"
	CapabilityEarnXP = "block/xp:earnxp"
	BadgesFileArea   = "badges"
)

// AllowedContexts is the set of context levels in which events can earn XP.
// It is computed once at startup and never changes afterwards.
type AllowedContexts struct {
	levels     []platform.ContextLevel
	siteWide   bool
	siteCourse int64
}

// NewAllowedContexts builds the set from the plugin context setting.
// Course and module are always allowed; system only when the plugin is
// configured to work site-wide.
func NewAllowedContexts(pluginContext platform.ContextLevel) AllowedContexts {
	levels := []platform.ContextLevel{platform.ContextCourse, platform.ContextModule}
	siteWide := pluginContext == platform.ContextSystem
	if siteWide {
		levels = append(levels, platform.ContextSystem)
	}
	return AllowedContexts{levels: levels, siteWide: siteWide, siteCourse: platform.SiteCourseID}
}

// WithSiteCourse returns a copy that resolves site-wide events to courseID.
func (a AllowedContexts) WithSiteCourse(courseID int64) AllowedContexts {
	if courseID > 0 {
		a.siteCourse = courseID
	}
	return a
}

// SiteWide reports whether the plugin works for the whole site.
func (a AllowedContexts) SiteWide() bool {
	return a.siteWide
}

// CourseFor returns the course whose manager captures event. A site-wide
// plugin keeps a single manager, the one of the site course, so every event
// (including system events with no course) goes there.
func (a AllowedContexts) CourseFor(event platform.Event) int64 {
	if a.siteWide {
		return a.siteCourse
	}
	return event.CourseID
}

// Contains reports whether level is allowed.
func (a AllowedContexts) Contains(level platform.ContextLevel) bool {
	for _, l := range a.levels {
		if l == level {
			return true
		}
	}
	return false
}

// Levels returns a copy of the allowed levels.
func (a AllowedContexts) Levels() []platform.ContextLevel {
	out := make([]platform.ContextLevel, len(a.levels))
	copy(out, a.levels)
	return out
}

// SkipReason names the rule that stopped an event. Empty means captured.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipOwnComponent SkipReason = "own_component"
	SkipNoUser       SkipReason = "no_user"
	SkipGuestUser    SkipReason = "guest_user"
	SkipSiteAdmin    SkipReason = "site_admin"
	SkipAnonymous    SkipReason = "anonymous"
	SkipContextLevel SkipReason = "context_level"
	SkipEduLevel     SkipReason = "edu_level"
	SkipNoCapability SkipReason = "no_capability"
)

// Decision is the outcome of running the filter chain on one event.
type Decision struct {
	Event platform.Event
	Skip  SkipReason
}

// Captured reports whether the event passed every rule.
func (d Decision) Captured() bool {
	return d.Skip == SkipNone
}

// rule skips an event when match returns true.
type rule struct {
	reason SkipReason
	match  func(ctx context.Context, event platform.Event) (bool, error)
}

// rules builds the filter chain. Order matters: cheap checks on the event
// itself come before calls to host services, and the first match wins.
func (o *Observer) rules() []rule {
	return []rule{
		{SkipOwnComponent, func(_ context.Context, e platform.Event) (bool, error) {
			return e.Component == Component, nil
		}},
		{SkipNoUser, func(_ context.Context, e platform.Event) (bool, error) {
			return !e.HasUser(), nil
		}},
		{SkipGuestUser, func(ctx context.Context, e platform.Event) (bool, error) {
			return o.users.IsGuest(ctx, e.UserID)
		}},
		{SkipSiteAdmin, func(ctx context.Context, e platform.Event) (bool, error) {
			return o.users.IsSiteAdmin(ctx, e.UserID)
		}},
		{SkipAnonymous, func(_ context.Context, e platform.Event) (bool, error) {
			return e.Anonymous, nil
		}},
		{SkipContextLevel, func(_ context.Context, e platform.Event) (bool, error) {
			return !o.allowed.Contains(e.ContextLevel), nil
		}},
		{SkipEduLevel, func(_ context.Context, e platform.Event) (bool, error) {
			return e.EduLevel != platform.EduLevelParticipating, nil
		}},
		{SkipNoCapability, func(ctx context.Context, e platform.Event) (bool, error) {
			ok, err := o.capabilities.HasCapability(ctx, CapabilityEarnXP, e.ContextID, e.UserID)
			return !ok, err
		}},
	}
}

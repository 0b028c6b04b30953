package service

import "context"

// SiteUsers implements platform.UserDirectory from the site configuration:
// one guest account and a fixed list of site administrators.
type SiteUsers struct {
	guestID int64
	admins  map[int64]struct{}
}

// NewSiteUsers creates a SiteUsers. A guestID of zero means the site has no
// guest account.
func NewSiteUsers(guestID int64, admins []int64) *SiteUsers {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &SiteUsers{guestID: guestID, admins: set}
}

func (s *SiteUsers) IsGuest(ctx context.Context, userID int64) (bool, error) {
	return s.guestID != 0 && userID == s.guestID, nil
}

func (s *SiteUsers) IsSiteAdmin(ctx context.Context, userID int64) (bool, error) {
	_, ok := s.admins[userID]
	return ok, nil
}

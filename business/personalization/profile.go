package personalization

import (
	"context"
	"fmt"

	"myGreenStorefront/domain"
)

const (
	profileTopCategories  = 3
	profileTopProducts    = 5
	profileRecentSearches = 3
)

// buildProfile projects the aggregates into a profile summary.
func buildProfile(
	history []domain.BrowsingEvent,
	views map[string]int,
	categories map[string]int,
	searches []domain.SearchHistoryEntry,
) domain.PersonalizationProfile {
	p := domain.PersonalizationProfile{
		Stats: domain.ProfileStats{
			TotalPageViews: len(history),
			SearchCount:    len(searches),
		},
		Preferences: domain.ProfilePreferences{
			TopCategories:  topKeys(categories, profileTopCategories),
			TopProducts:    topKeys(views, profileTopProducts),
			RecentSearches: []string{},
		},
	}
	for _, c := range views {
		p.Stats.ProductViews += c
	}
	for _, c := range categories {
		p.Stats.CategoryViews += c
	}
	for i, s := range searches {
		if i >= profileRecentSearches {
			break
		}
		p.Preferences.RecentSearches = append(p.Preferences.RecentSearches, s.Term)
	}
	return p
}

func emptyProfile() domain.PersonalizationProfile {
	return buildProfile(nil, nil, nil, nil)
}

// updateProfile recomputes the profile from the stored aggregates.
func (s *Service) updateProfile(ctx context.Context) error {
	var (
		history    []domain.BrowsingEvent
		views      = map[string]int{}
		categories = map[string]int{}
		searches   []domain.SearchHistoryEntry
	)
	if err := s.loadOrReset(ctx, KeyBrowsingHistory, &history); err != nil {
		return err
	}
	if err := s.loadOrReset(ctx, KeyProductViews, &views); err != nil {
		return err
	}
	if err := s.loadOrReset(ctx, KeyCategoryPrefs, &categories); err != nil {
		return err
	}
	if err := s.loadOrReset(ctx, KeySearchHistory, &searches); err != nil {
		return err
	}

	profile := buildProfile(history, views, categories, searches)
	profile.LastUpdated = s.now()

	if err := writeValue(ctx, s.store, KeyProfile, profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// UpdatePersonalizationProfile recomputes and persists the profile summary.
func (s *Service) UpdatePersonalizationProfile(ctx context.Context) (ok bool) {
	defer s.recoverTo(ctx, "update_profile", func() { ok = false })
	unlock := s.lock()
	defer unlock()

	if err := s.updateProfile(ctx); err != nil {
		s.fail(ctx, "update_profile", err)
		return false
	}
	return true
}

// GetProfile returns the stored profile, or an empty one when none exists.
func (s *Service) GetProfile(ctx context.Context) (profile domain.PersonalizationProfile) {
	profile = emptyProfile()
	defer s.recoverTo(ctx, "get_profile", func() { profile = emptyProfile() })
	unlock := s.lock()
	defer unlock()

	var stored domain.PersonalizationProfile
	found, err := readValue(ctx, s.store, KeyProfile, &stored)
	if err != nil {
		s.fail(ctx, "get_profile", err)
		return emptyProfile()
	}
	if !found {
		return emptyProfile()
	}
	return stored
}

// History returns the browsing history, newest first.
func (s *Service) History(ctx context.Context) (history []domain.BrowsingEvent) {
	history = []domain.BrowsingEvent{}
	defer s.recoverTo(ctx, "history", func() { history = []domain.BrowsingEvent{} })
	unlock := s.lock()
	defer unlock()

	if err := s.loadOrReset(ctx, KeyBrowsingHistory, &history); err != nil {
		s.fail(ctx, "history", err)
		return []domain.BrowsingEvent{}
	}
	if history == nil {
		history = []domain.BrowsingEvent{}
	}
	return history
}

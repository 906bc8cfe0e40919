package authz

import (
	"reflect"
	"testing"

	"tourhub/pkg/model"
)

func labels(entries []NavEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label)
	}
	return out
}

func TestResolveNavigation_FixedMenusPerRole(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
		want []string
	}{
		{
			name: "anonymous",
			role: model.Role(""),
			want: []string{"Home", "Explore", "Become a Guide", "Login", "Register"},
		},
		{
			name: "tourist",
			role: model.RoleTourist,
			want: []string{"Home", "Explore", "My Bookings", "My Completed Tours", "Wishlist", "Profile", "Logout"},
		},
		{
			name: "guide",
			role: model.RoleGuide,
			want: []string{"Home", "Tour Management", "Booking Management", "Profile", "Logout"},
		},
		{
			name: "admin",
			role: model.RoleAdmin,
			want: []string{"Home", "User Management", "Tour Management", "Booking Management", "Profile", "Logout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labels(ResolveNavigation(tt.role))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveNavigation(%q) labels = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestResolveNavigation_UnknownRoleFallsBackToAnonymous(t *testing.T) {
	got := ResolveNavigation(model.Role("SUPERUSER"))
	want := ResolveNavigation(model.Role(""))

	if !reflect.DeepEqual(got, want) {
		t.Errorf("unknown role must resolve to the anonymous menu, got %v", labels(got))
	}
}

func TestResolveNavigation_Deterministic(t *testing.T) {
	for _, role := range append(model.Roles(), model.Role("")) {
		first := ResolveNavigation(role)
		if len(first) == 0 {
			t.Fatalf("ResolveNavigation(%q) must never be empty", role)
		}
		for i := 0; i < 5; i++ {
			if !reflect.DeepEqual(ResolveNavigation(role), first) {
				t.Fatalf("ResolveNavigation(%q) is not deterministic", role)
			}
		}
	}
}

func TestResolveNavigation_GuideGroups(t *testing.T) {
	nav := ResolveNavigation(model.RoleGuide)

	var tourMgmt *NavEntry
	for i := range nav {
		if nav[i].Label == "Tour Management" {
			tourMgmt = &nav[i]
		}
	}
	if tourMgmt == nil {
		t.Fatal("guide menu must contain a Tour Management group")
	}
	if got := labels(tourMgmt.Children); !reflect.DeepEqual(got, []string{"Create", "My Tours"}) {
		t.Errorf("Tour Management children = %v", got)
	}
}

func TestCan(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
		cap  Capability
		want bool
	}{
		{"tourist books tours", model.RoleTourist, CapBookTours, true},
		{"tourist uses wishlist", model.RoleTourist, CapUseWishlist, true},
		{"tourist cannot decide bookings", model.RoleTourist, CapDecideBookings, false},
		{"guide decides bookings", model.RoleGuide, CapDecideBookings, true},
		{"guide has no wishlist", model.RoleGuide, CapUseWishlist, false},
		{"guide cannot manage users", model.RoleGuide, CapManageUsers, false},
		{"admin manages users", model.RoleAdmin, CapManageUsers, true},
		{"admin moderates reviews", model.RoleAdmin, CapModerateReviews, true},
		{"admin has no wishlist", model.RoleAdmin, CapUseWishlist, false},
		{"anyone browses tours", model.Role(""), CapBrowseTours, true},
		{"unknown role gets nothing else", model.Role("SUPERUSER"), CapManageUsers, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.role, tt.cap); got != tt.want {
				t.Errorf("Can(%q, %q) = %v, want %v", tt.role, tt.cap, got, tt.want)
			}
		})
	}
}

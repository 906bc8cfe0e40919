package authz

import (
	"tourhub/pkg/model"
)

// NavEntry is one navigation menu item: either a direct link or a named
// group of sub-links. Order and grouping are fixed per role.
type NavEntry struct {
	Label    string     `json:"label"`
	Path     string     `json:"path,omitempty"`
	Children []NavEntry `json:"children,omitempty"`
}

var anonymousNav = []NavEntry{
	{Label: "Home", Path: "/"},
	{Label: "Explore", Path: "/tours"},
	{Label: "Become a Guide", Path: "/become-a-guide"},
	{Label: "Login", Path: "/login"},
	{Label: "Register", Path: "/register"},
}

var touristNav = []NavEntry{
	{Label: "Home", Path: "/"},
	{Label: "Explore", Path: "/tours"},
	{Label: "My Bookings", Path: "/bookings"},
	{Label: "My Completed Tours", Path: "/bookings/completed"},
	{Label: "Wishlist", Path: "/wishlist"},
	{Label: "Profile", Path: "/profile"},
	{Label: "Logout", Path: "/logout"},
}

var guideNav = []NavEntry{
	{Label: "Home", Path: "/"},
	{Label: "Tour Management", Children: []NavEntry{
		{Label: "Create", Path: "/guide/tours/new"},
		{Label: "My Tours", Path: "/guide/tours"},
	}},
	{Label: "Booking Management", Children: []NavEntry{
		{Label: "Pending", Path: "/guide/bookings/pending"},
		{Label: "My Bookings", Path: "/guide/bookings"},
	}},
	{Label: "Profile", Path: "/profile"},
	{Label: "Logout", Path: "/logout"},
}

var adminNav = []NavEntry{
	{Label: "Home", Path: "/"},
	{Label: "User Management", Children: []NavEntry{
		{Label: "All Users", Path: "/admin/users"},
	}},
	{Label: "Tour Management", Children: []NavEntry{
		{Label: "All Tours", Path: "/admin/tours"},
	}},
	{Label: "Booking Management", Children: []NavEntry{
		{Label: "All Bookings", Path: "/admin/bookings"},
	}},
	{Label: "Profile", Path: "/profile"},
	{Label: "Logout", Path: "/logout"},
}

// ResolveNavigation maps a role to its fixed menu. Anything that is not
// a known authenticated role, including the empty anonymous role, gets
// the anonymous menu; the resolver never fails.
func ResolveNavigation(role model.Role) []NavEntry {
	switch role {
	case model.RoleTourist:
		return touristNav
	case model.RoleGuide:
		return guideNav
	case model.RoleAdmin:
		return adminNav
	default:
		return anonymousNav
	}
}

package authz

import (
	"tourhub/pkg/model"
)

// Capability names one action class the permission table grants. Every
// role check in the service goes through Can so the whole policy is
// auditable in this one file.
type Capability string

const (
	CapBrowseTours     Capability = "tours.browse"
	CapBookTours       Capability = "bookings.create"
	CapUseWishlist     Capability = "wishlist.use"
	CapWriteReviews    Capability = "reviews.write"
	CapManageOwnTours  Capability = "tours.manage_own"
	CapDecideBookings  Capability = "bookings.decide"
	CapManageAllTours  Capability = "tours.manage_all"
	CapManageUsers     Capability = "users.manage"
	CapViewAllBookings Capability = "bookings.view_all"
	CapModerateReviews Capability = "reviews.moderate"
	CapChat            Capability = "chat.use"
)

var capabilitiesByRole = map[model.Role][]Capability{
	model.RoleTourist: {
		CapBrowseTours,
		CapBookTours,
		CapUseWishlist,
		CapWriteReviews,
		CapChat,
	},
	model.RoleGuide: {
		CapBrowseTours,
		CapManageOwnTours,
		CapDecideBookings,
		CapChat,
	},
	model.RoleAdmin: {
		CapBrowseTours,
		CapManageAllTours,
		CapManageUsers,
		CapViewAllBookings,
		CapModerateReviews,
		CapChat,
	},
}

// Can reports whether the role holds the capability. Unknown roles hold
// nothing beyond what anonymous visitors get.
func Can(role model.Role, cap Capability) bool {
	if cap == CapBrowseTours {
		return true
	}
	for _, c := range capabilitiesByRole[role] {
		if c == cap {
			return true
		}
	}
	return false
}

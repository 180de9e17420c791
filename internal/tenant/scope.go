package tenant

import "gorm.io/gorm"

// ForCommunity returns a GORM scope that filters by community_id.
func ForCommunity(communityID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("community_id = ?", communityID)
	}
}

// ForMember narrows to one user's rows inside a community. Every
// per-user table is keyed by (community_id, user_id).
func ForMember(communityID, userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("community_id = ? AND user_id = ?", communityID, userID)
	}
}

package dedupe

import "strconv"

// NamespaceUsers is the shared namespace for usernames and group names:
// the target schema requires the two to be mutually unique.
const NamespaceUsers = "users"

// NamespaceCategory scopes category names to their parent category, matching
// the target's (parent_category_id, name) uniqueness constraint. Root
// categories use parent id 0.
func NamespaceCategory(parentID int64) string {
	return "category:" + strconv.FormatInt(parentID, 10)
}

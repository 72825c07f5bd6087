package app

import "gopherblog/internal/model"

// CanModify reports whether userID may edit or delete post. A nil post or an
// anonymous user is never allowed; callers check for a missing post first.
func CanModify(userID string, post *model.Post) bool {
	return post != nil && userID != "" && post.AuthorID == userID
}

package domain

// UserRef is the display projection of a directory user.
type UserRef struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

// MentionedUser is a validated reference from a Comment event to another
// user. A mention row only ever exists as part of the same atomic unit as
// its owning comment.
type MentionedUser struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

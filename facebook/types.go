// Package facebook implements the share count adapter for the Facebook Graph API.
package facebook

// Object is the Graph API node for a URL (nullable fields as pointers)
type Object struct {
	ID    string `json:"id"`
	Share *Share `json:"share"`
}

type Share struct {
	CommentCount *int `json:"comment_count"`
	ShareCount   *int `json:"share_count"`
}

package model

import "time"

// Post is a community feed entry. LikedBy holds user ids.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Avatar    string    `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	LikedBy   []string  `json:"likedBy"`
	Comments  []Comment `json:"comments"`
	Owner     string    `json:"owner"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a reply on a post.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Owner     string    `json:"owner"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

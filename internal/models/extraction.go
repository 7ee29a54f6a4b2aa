package models

// TopicsPayload is the wire shape returned by the structured extraction
// tiers of the remote service.
type TopicsPayload struct {
	Topics []TopicItem `json:"topics"`
}

// TopicItem is one extracted topic as returned by the service.
type TopicItem struct {
	Topic            string     `json:"topic"`
	TopicDescription string     `json:"topic_description"`
	MessageIDs       []int64    `json:"message_ids"`
	MessageCount     int        `json:"message_count"`
	Participants     []UserItem `json:"participants"`
}

// UserItem is one topic participant as returned by the service.
type UserItem struct {
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	SecondName   string `json:"second_name"`
	MessageCount int    `json:"message_count"`
}

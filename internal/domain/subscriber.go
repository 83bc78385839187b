package domain

// Subscriber is one digest recipient. Count is the number of top stories
// the subscriber asked for; the uint8 width matches the 0..255 store check.
type Subscriber struct {
	Email string `db:"email"`
	Count uint8  `db:"count"`
}

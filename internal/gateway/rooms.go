package gateway

// RoomNamer computes broadcast room identifiers. Rooms have no stored state;
// they exist only as long as a connection has joined them, so the id scheme
// is the whole contract.
type RoomNamer interface {
	// DirectRoom returns the room shared by two users. Symmetric: both
	// participants compute the same id regardless of argument order.
	DirectRoom(a, b string) string

	// PostRoom returns the discussion room for a post.
	PostRoom(postID string) string
}

const (
	chatRoomPrefix  = "chat:"
	postRoomPrefix  = "post:"
	roomIDSeparator = "-"
)

type prefixRoomNamer struct{}

// NewRoomNamer returns the default prefix-based naming scheme.
func NewRoomNamer() RoomNamer {
	return prefixRoomNamer{}
}

func (prefixRoomNamer) DirectRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return chatRoomPrefix + a + roomIDSeparator + b
}

func (prefixRoomNamer) PostRoom(postID string) string {
	return postRoomPrefix + postID
}

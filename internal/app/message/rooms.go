package message

import "strings"

// directRoomSep joins the two participant ids of a direct room.
const directRoomSep = ":"

// DirectRoomID derives the room id for a direct chat between two users.
// The ids are ordered before joining so both participants compute the same
// room id regardless of who sends first.
func DirectRoomID(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + directRoomSep + userB
}

// DirectRoomPeers splits a direct room id back into its two participant ids.
// The second return is false for group room ids.
func DirectRoomPeers(roomID string) (string, string, bool) {
	a, b, found := strings.Cut(roomID, directRoomSep)
	if !found || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

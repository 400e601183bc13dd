package events

// ChannelUser is the per-user channel carrying chat list and profile
// invalidations for one account.
func ChannelUser(userID string) string {
	return ChannelPrefixUser + userID
}

// ChannelChat is the per-chat channel carrying message events for both
// participants of one chat.
func ChannelChat(chatID string) string {
	return ChannelPrefixChat + chatID
}

// ChannelPresence carries online/offline transitions for one user.
func ChannelPresence(userID string) string {
	return ChannelPrefixPresence + userID
}

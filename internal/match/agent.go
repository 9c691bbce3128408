package match

// Canned lines for the built-in opponent. Indexed by how many messages the
// agent has received so far, so a conversation doesn't repeat itself.
var cannedReplies = []string{
	"hey! took me a second to see your message. how's your day going?",
	"ha, fair enough. I've mostly been procrastinating, honestly.",
	"good question. I'd probably say coffee, but only because it's right here.",
}

func cannedReply(received int) string {
	if received <= 0 {
		return cannedReplies[0]
	}
	if received > len(cannedReplies) {
		received = len(cannedReplies)
	}
	return cannedReplies[received-1]
}

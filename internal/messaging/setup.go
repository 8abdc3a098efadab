package messaging

import (
	"log"

	"github.com/PlaceBound/PB-Backend/internal/db"
)

func Init() {
	// Ensure the messaging schema exists first
	if err := db.EnsureSchema(db.DB, "messaging"); err != nil {
		log.Fatal("Failed to create messaging schema: ", err)
	}

	if err := db.DB.AutoMigrate(
		&Channel{}, &ChannelMembership{}, &Message{}, &MessageReaction{}, &DirectMessage{},
	); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}
}

// reactionKinds is the set of reaction choices users can pick from.
var reactionKinds = []string{"like", "love", "laugh", "wow", "sad", "angry"}

// SetReactionKinds overrides the accepted reaction kinds, typically from the
// engine config file. Call once at startup.
func SetReactionKinds(kinds []string) {
	if len(kinds) > 0 {
		reactionKinds = kinds
	}
}

func validKind(kind string) bool {
	for _, k := range reactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

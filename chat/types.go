package chat

// Account is a connected chat identity. IHash is the stable pseudonymous
// hash derived from the client address; it is what the ignore relation is
// keyed on, never the account ID.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Room  string `json:"room"`
	IHash string `json:"ihash"`
}

// Directory tracks connected accounts, their room membership and their
// mutual ignore relations.
type Directory interface {
	// Join registers a new account and returns it along with a signed
	// session token the client presents on subsequent requests.
	Join(name, room, ip string) (Account, string, error)

	// Leave removes an account. Unknown IDs are ignored.
	Leave(accountID string)

	// Move places an account in a different room.
	Move(accountID, room string) error

	// SetIgnored records or clears accountID ignoring targetIHash.
	SetIgnored(accountID, targetIHash string, on bool) error

	// AccountByID resolves an account by its identifier.
	AccountByID(id string) (Account, bool)

	// AccountByToken resolves an account from a session token.
	AccountByToken(token string) (Account, bool)

	// MembersOf lists the accounts currently in a room.
	MembersOf(room string) []Account

	// CanSee reports whether viewer may observe publisher's broadcast
	// state. True when viewer == publisher. Otherwise both identities
	// must resolve to a hash, an unresolvable side hides the broadcast,
	// and visibility requires that neither side ignores the other.
	CanSee(viewerID, publisherID string) bool
}

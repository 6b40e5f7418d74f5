package session

import "github.com/spec-kit/market-session/internal/domain"

// Broadcaster exposes the session's observable state as latest-value cells.
// Writes are confined to the session service; collaborators only read and
// subscribe.
type Broadcaster struct {
	LoggedIn         *Cell[bool]
	Profile          *Cell[*domain.UserProfile]
	Location         *Cell[*domain.Location]
	BootstrapLoading *Cell[bool]
}

// NewBroadcaster builds the cells in their process-start state: logged out,
// no profile, no location, bootstrap in progress.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		LoggedIn:         NewCell(false),
		Profile:          NewCell[*domain.UserProfile](nil),
		Location:         NewCell[*domain.Location](nil),
		BootstrapLoading: NewCell(true),
	}
}

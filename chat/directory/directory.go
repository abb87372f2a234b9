package directory

import (
	"sort"

	"github.com/google/uuid"

	"github.com/kisschan/monachat-like/chat"
	"github.com/kisschan/monachat-like/chat/tripper"
	"github.com/kisschan/monachat-like/internal/errors"
	"github.com/kisschan/monachat-like/internal/jwt"
	"github.com/kisschan/monachat-like/internal/log"
	intsync "github.com/kisschan/monachat-like/internal/sync"
)

// entry is the mutable per-account state. Only touched under the map lock.
type entry struct {
	account chat.Account
	ignores map[string]bool
}

type directoryImpl struct {
	accounts *intsync.Map[string, *entry]
	auth     jwt.Auth
	tripper  tripper.Tripper
	logger   *log.Logger
}

func New(auth jwt.Auth, tr tripper.Tripper, logger *log.Logger) chat.Directory {
	return &directoryImpl{
		accounts: intsync.NewMap[string, *entry](),
		auth:     auth,
		tripper:  tr,
		logger:   logger,
	}
}

func (d *directoryImpl) Join(name, room, ip string) (chat.Account, string, error) {
	if name == "" {
		return chat.Account{}, "", errors.New(chat.ErrInvalidArgument, "name is required")
	}

	account := chat.Account{
		ID:    uuid.NewString(),
		Name:  name,
		Room:  room,
		IHash: d.tripper.Hash(ip),
	}

	token, err := d.auth.Sign(account.ID)
	if err != nil {
		return chat.Account{}, "", errors.Wrap(chat.ErrInvalidArgument, err, "failed to sign session token")
	}

	d.accounts.Store(account.ID, &entry{
		account: account,
		ignores: map[string]bool{},
	})

	d.logger.Info("Account joined",
		log.String("accountId", account.ID),
		log.String("room", room))
	return account, token, nil
}

func (d *directoryImpl) Leave(accountID string) {
	if _, loaded := d.accounts.LoadAndDelete(accountID); loaded {
		d.logger.Info("Account left", log.String("accountId", accountID))
	}
}

func (d *directoryImpl) Move(accountID, room string) error {
	found := false
	d.accounts.WithLock(func(view intsync.View[string, *entry]) {
		e, ok := view.Get(accountID)
		if !ok {
			return
		}
		e.account.Room = room
		found = true
	})
	if !found {
		return errors.Newf(chat.ErrAccountNotFound, "unknown account %s", accountID)
	}
	return nil
}

func (d *directoryImpl) SetIgnored(accountID, targetIHash string, on bool) error {
	if targetIHash == "" {
		return errors.New(chat.ErrInvalidArgument, "target hash is required")
	}

	found := false
	d.accounts.WithLock(func(view intsync.View[string, *entry]) {
		e, ok := view.Get(accountID)
		if !ok {
			return
		}
		if on {
			e.ignores[targetIHash] = true
		} else {
			delete(e.ignores, targetIHash)
		}
		found = true
	})
	if !found {
		return errors.Newf(chat.ErrAccountNotFound, "unknown account %s", accountID)
	}
	return nil
}

func (d *directoryImpl) AccountByID(id string) (chat.Account, bool) {
	e, ok := d.accounts.Load(id)
	if !ok {
		return chat.Account{}, false
	}
	return e.account, true
}

func (d *directoryImpl) AccountByToken(token string) (chat.Account, bool) {
	payload, err := d.auth.Verify(token)
	if err != nil {
		return chat.Account{}, false
	}
	return d.AccountByID(payload.AccountID)
}

func (d *directoryImpl) MembersOf(room string) []chat.Account {
	var members []chat.Account
	d.accounts.Range(func(_ string, e *entry) bool {
		if e.account.Room == room {
			members = append(members, e.account)
		}
		return true
	})
	sort.Slice(members, func(i, j int) bool {
		return members[i].ID < members[j].ID
	})
	return members
}

func (d *directoryImpl) CanSee(viewerID, publisherID string) bool {
	if viewerID == publisherID {
		return true
	}

	visible := false
	d.accounts.WithLock(func(view intsync.View[string, *entry]) {
		viewer, ok := view.Get(viewerID)
		if !ok {
			return
		}
		publisher, ok := view.Get(publisherID)
		if !ok {
			return
		}
		// an unresolvable hash on either side hides the broadcast
		if viewer.account.IHash == "" || publisher.account.IHash == "" {
			return
		}
		if viewer.ignores[publisher.account.IHash] {
			return
		}
		if publisher.ignores[viewer.account.IHash] {
			return
		}
		visible = true
	})
	return visible
}

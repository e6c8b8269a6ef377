package room

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/protocol"
)

// Member is one live transport bound to an identity.
type Member interface {
	Identity() entity.Identity
	Send(envelope protocol.Envelope) error
	Close() error
}

// memberList keeps at most one transport per identity id, in insertion order.
// It is not synchronized; owners hold their own lock.
type memberList struct {
	byID  map[string]Member
	order []string
}

func newMemberList() memberList {
	return memberList{byID: make(map[string]Member)}
}

// put registers member and returns the transport it replaced, if any.
func (that *memberList) put(member Member) Member {
	id := member.Identity().ID

	previous, ok := that.byID[id]
	if !ok {
		that.order = append(that.order, id)
	}

	that.byID[id] = member

	if previous == member {
		return nil
	}

	return previous
}

// remove drops member only while it is still the registered transport for its identity.
func (that *memberList) remove(member Member) bool {
	id := member.Identity().ID

	if current, ok := that.byID[id]; !ok || current != member {
		return false
	}

	delete(that.byID, id)
	for i, existing := range that.order {
		if existing == id {
			that.order = append(that.order[:i], that.order[i+1:]...)
			break
		}
	}

	return true
}

func (that *memberList) contains(id string) bool {
	_, ok := that.byID[id]
	return ok
}

func (that *memberList) len() int {
	return len(that.byID)
}

func (that *memberList) snapshot() []Member {
	members := make([]Member, 0, len(that.order))
	for _, id := range that.order {
		members = append(members, that.byID[id])
	}
	return members
}

func (that *memberList) identities() []entity.Identity {
	identities := make([]entity.Identity, 0, len(that.order))
	for _, id := range that.order {
		identities = append(identities, that.byID[id].Identity())
	}
	return identities
}

func (that *memberList) clear() []Member {
	members := that.snapshot()
	that.byID = make(map[string]Member)
	that.order = nil
	return members
}

// Broadcast sends envelope to every member. A failed send does not stop delivery
// to the others; all failures are returned joined.
func Broadcast(members []Member, envelope protocol.Envelope) error {
	var errs []error

	for _, member := range members {
		if err := member.Send(envelope); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", member.Identity().ID, err))
		}
	}

	return errors.Join(errs...)
}

// ClientSet is a concurrency-safe set of connections keyed by identity.
type ClientSet struct {
	mu      sync.RWMutex
	members memberList
}

func NewClientSet() *ClientSet {
	return &ClientSet{members: newMemberList()}
}

// Add registers member, returning the superseded transport of the same identity.
func (that *ClientSet) Add(member Member) Member {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.put(member)
}

func (that *ClientSet) Remove(member Member) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.members.remove(member)
}

func (that *ClientSet) Contains(id string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.members.contains(id)
}

func (that *ClientSet) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.members.len()
}

func (that *ClientSet) Members() []Member {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.members.snapshot()
}

// Broadcast sends to a snapshot taken under the lock; sends happen outside it.
func (that *ClientSet) Broadcast(envelope protocol.Envelope) error {
	return Broadcast(that.Members(), envelope)
}

// Close closes every member and empties the set.
func (that *ClientSet) Close() error {
	that.mu.Lock()
	members := that.members.clear()
	that.mu.Unlock()

	var errs []error
	for _, member := range members {
		if err := member.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

package trivia

import (
	"sync"
	"time"
)

// Options configures a Registry. Zero values fall back to the built-in
// question bank, the wall clock and DefaultRoundTimeout.
type Options struct {
	Bank           *Bank
	Publisher      Publisher
	Clock          Clock
	RoundTimeout   time.Duration
	ShuffleOptions bool
	Logf           func(format string, args ...any)
}

// Registry maps room identifiers to live rooms. The lock only guards the
// map itself; each room serializes its own events.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	opts  Options
}

func NewRegistry(opts Options) *Registry {
	if opts.Bank == nil {
		opts.Bank = DefaultBank()
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.RoundTimeout <= 0 {
		opts.RoundTimeout = DefaultRoundTimeout
	}

	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// Join adds a player to roomID, creating the room if needed. A join that
// races the room's destruction is retried against a fresh room.
func (reg *Registry) Join(roomID, connID, name string) {
	for {
		r := reg.getOrCreate(roomID)

		if r.post(joinEvent{connID: connID, name: name}) {
			return
		}

		reg.forget(r)
	}
}

// SubmitAnswer forwards an answer for round to the player's room. A round
// of zero means whichever round is current. Unknown rooms are ignored.
func (reg *Registry) SubmitAnswer(roomID, connID, answer string, round uint64) {
	r := reg.get(roomID)
	if r == nil {
		return
	}

	r.post(submitEvent{connID: connID, answer: answer, round: round})
}

// Disconnect removes connID from every room. Empty rooms are cleaned up
// the next time they try to start a round.
func (reg *Registry) Disconnect(connID string) {
	for _, r := range reg.snapshot() {
		r.post(leaveEvent{connID: connID})
	}
}

// Teardown stops roomID and cancels its timer. A resolution already in
// progress finishes, but the room never opens another round. Unknown ids
// are ignored.
func (reg *Registry) Teardown(roomID string) {
	reg.mu.Lock()
	r, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()

	if ok {
		r.stop()
		reg.logf("GAMES: Tore down %s", roomID)
	}
}

// Scores returns the current scoreboard of roomID in roster order.
func (reg *Registry) Scores(roomID string) ([]Score, bool) {
	r := reg.get(roomID)
	if r == nil {
		return nil, false
	}

	reply := make(chan []Score, 1)
	if !r.post(scoresEvent{reply: reply}) {
		return nil, false
	}

	select {
	case scores := <-reply:
		return scores, true
	case <-r.done:
		select {
		case scores := <-reply:
			return scores, true
		default:
			return nil, false
		}
	}
}

func (reg *Registry) Exists(roomID string) bool {
	return reg.get(roomID) != nil
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return len(reg.rooms)
}

// Close tears down every room.
func (reg *Registry) Close() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	for _, r := range rooms {
		r.stop()
		<-r.done
	}
}

func (reg *Registry) get(roomID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[roomID]
}

func (reg *Registry) getOrCreate(roomID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[roomID]; ok {
		return r
	}

	r := newRoom(roomID, reg)
	reg.rooms[roomID] = r
	go r.run()

	reg.logf("GAMES: Created %s", roomID)

	return r
}

// forget drops r from the map if it is still the entry for its id.
func (reg *Registry) forget(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.rooms[r.id] == r {
		delete(reg.rooms, r.id)
	}
}

func (reg *Registry) snapshot() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}

	return rooms
}

func (reg *Registry) publish(roomID string, recipients []string, msg any) {
	if reg.opts.Publisher == nil {
		return
	}

	reg.opts.Publisher.Publish(roomID, recipients, msg)
}

func (reg *Registry) logf(format string, args ...any) {
	if reg.opts.Logf == nil {
		return
	}

	reg.opts.Logf(format, args...)
}

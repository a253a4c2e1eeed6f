package trivia

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	// WinScore ends the room as soon as any player reaches it.
	WinScore = 6

	// DefaultRoundTimeout is how long a question stays open.
	DefaultRoundTimeout = 10 * time.Second

	// NoOne is the player name reported when a round times out.
	NoOne = "no one"
)

// Player is a room member, identified by its connection.
type Player struct {
	ConnID string
	Name   string
	Score  int
}

type round struct {
	seq      uint64
	question Question
	correct  string
}

type joinEvent struct {
	connID string
	name   string
}

type submitEvent struct {
	connID string
	answer string
	round  uint64
}

type leaveEvent struct {
	connID string
}

type scoresEvent struct {
	reply chan<- []Score
}

// Room owns one game. All of its state is confined to the run goroutine;
// other goroutines talk to it only through post.
type Room struct {
	id  string
	reg *Registry

	players []*Player
	round   *round
	seq     uint64

	timer    Timer
	armedFor uint64

	events   chan any
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newRoom(id string, reg *Registry) *Room {
	return &Room{
		id:     id,
		reg:    reg,
		events: make(chan any),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// post hands ev to the room goroutine. It reports false once the room has
// stopped, in which case ev was not observed.
func (r *Room) post(ev any) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

// stopped reports whether the room was torn down, possibly while an event
// was still being handled.
func (r *Room) stopped() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

func (r *Room) run() {
	defer close(r.done)
	defer r.stopTimer()

	for {
		select {
		case <-r.quit:
			return
		default:
		}

		var timeout <-chan time.Time
		if r.timer != nil {
			timeout = r.timer.C()
		}

		alive := true

		select {
		case <-r.quit:
			return
		case ev := <-r.events:
			alive = r.handle(ev)
		case <-timeout:
			alive = r.expire(r.armedFor)
		}

		if !alive {
			return
		}
	}
}

func (r *Room) handle(ev any) bool {
	if r.stopped() {
		return false
	}

	switch e := ev.(type) {
	case joinEvent:
		return r.join(e)
	case submitEvent:
		return r.submit(e)
	case leaveEvent:
		r.leave(e)
	case scoresEvent:
		e.reply <- r.scores()
	}

	return true
}

func (r *Room) join(e joinEvent) bool {
	if r.player(e.connID) != nil {
		return true
	}

	r.players = append(r.players, &Player{ConnID: e.connID, Name: e.name})
	r.reg.logf("GAMES: Player %q joined %s", e.name, r.id)

	r.publish(NoticeMessage{
		Type: TypeMessage,
		Text: fmt.Sprintf("%s has joined the game", e.name),
	})

	if r.round == nil {
		return r.startRound()
	}

	return true
}

func (r *Room) leave(e leaveEvent) {
	for i, p := range r.players {
		if p.ConnID != e.connID {
			continue
		}

		r.players = append(r.players[:i], r.players[i+1:]...)
		r.reg.logf("GAMES: Player %q left %s", p.Name, r.id)

		r.publish(NoticeMessage{
			Type: TypeMessage,
			Text: fmt.Sprintf("%s has left the game", p.Name),
		})

		return
	}
}

// startRound opens the next round, or destroys the room when nobody is
// left to play it.
func (r *Room) startRound() bool {
	r.stopTimer()

	if r.stopped() {
		return false
	}

	if len(r.players) == 0 {
		r.destroy("empty")

		return false
	}

	q := r.reg.opts.Bank.Select()

	r.seq++
	r.round = &round{
		seq:      r.seq,
		question: q,
		correct:  q.CorrectAnswer,
	}

	r.timer = r.reg.opts.Clock.NewTimer(r.reg.opts.RoundTimeout)
	r.armedFor = r.seq

	opts := q.Options()
	if r.reg.opts.ShuffleOptions {
		rand.Shuffle(len(opts), func(i, j int) {
			opts[i], opts[j] = opts[j], opts[i]
		})
	}

	r.publish(QuestionMessage{
		Type:     TypeNewQuestion,
		Question: q.Text,
		Options:  opts,
		Timer:    seconds(r.reg.opts.RoundTimeout),
		Round:    r.seq,
	})

	return true
}

func (r *Room) submit(e submitEvent) bool {
	if r.round == nil {
		return true
	}

	if e.round != 0 && e.round != r.round.seq {
		r.reg.logf("GAMES: Discarded answer for round %d in %s (current %d)", e.round, r.id, r.round.seq)

		return true
	}

	p := r.player(e.connID)
	if p == nil {
		return true
	}

	r.stopTimer()

	if r.stopped() {
		return false
	}

	correct := e.answer == r.round.correct
	if correct {
		p.Score++
	} else {
		p.Score--
	}

	r.publish(ResultMessage{
		Type:          TypeAnswerResult,
		PlayerName:    p.Name,
		IsCorrect:     correct,
		CorrectAnswer: r.round.correct,
		Scores:        r.scores(),
		Round:         r.round.seq,
	})

	if w := r.winner(); w != nil {
		recipients := r.recipients()

		r.destroy("won by " + w.Name)

		r.reg.publish(r.id, recipients, GameOverMessage{
			Type:   TypeGameOver,
			Winner: w.Name,
		})

		return false
	}

	return r.startRound()
}

// expire resolves the round a timer was armed for. The win condition is
// not checked here since a timeout never changes a score.
func (r *Room) expire(seq uint64) bool {
	r.timer = nil

	if r.stopped() {
		return false
	}

	if r.round == nil || r.round.seq != seq {
		return true
	}

	r.publish(ResultMessage{
		Type:          TypeAnswerResult,
		PlayerName:    NoOne,
		IsCorrect:     false,
		CorrectAnswer: r.round.correct,
		Scores:        r.scores(),
		Round:         r.round.seq,
	})

	return r.startRound()
}

// destroy removes the room from the registry. The caller must return
// false to the run loop afterwards.
func (r *Room) destroy(reason string) {
	r.stopTimer()
	r.round = nil
	r.reg.forget(r)
	r.reg.logf("GAMES: Removed %s (%s)", r.id, reason)
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) player(connID string) *Player {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p
		}
	}

	return nil
}

func (r *Room) winner() *Player {
	for _, p := range r.players {
		if p.Score >= WinScore {
			return p
		}
	}

	return nil
}

func (r *Room) scores() []Score {
	scores := make([]Score, 0, len(r.players))
	for _, p := range r.players {
		scores = append(scores, Score{Name: p.Name, Score: p.Score})
	}

	return scores
}

func (r *Room) recipients() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ConnID)
	}

	return ids
}

func (r *Room) publish(msg any) {
	r.reg.publish(r.id, r.recipients(), msg)
}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

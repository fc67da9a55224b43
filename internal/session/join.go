package session

import (
	"slices"
	"sync"
	"time"

	"feedback-backend/internal/models"
)

// Join pairs every feedback with its owner's username. Feedback whose owner has
// no users document keeps its row with models.UnknownUser.
func Join(feedbacks []models.Feedback, users []models.User) []models.FeedbackWithUser {
	usernames := make(map[string]string, len(users))
	for _, user := range users {
		usernames[user.UID] = user.Username
	}
	rows := make([]models.FeedbackWithUser, 0, len(feedbacks))
	for _, f := range feedbacks {
		username, ok := usernames[f.UserID]
		if !ok {
			username = models.UnknownUser
		}
		rows = append(rows, models.FeedbackWithUser{
			ID:        f.ID,
			UserID:    f.UserID,
			Username:  username,
			Text:      f.Text,
			Timestamp: f.Timestamp,
		})
	}
	return rows
}

// SortFeedback orders feedback newest first. Equal timestamps keep their order.
func SortFeedback(feedbacks []models.Feedback) []models.Feedback {
	sorted := slices.Clone(feedbacks)
	slices.SortStableFunc(sorted, func(a, b models.Feedback) int {
		return compareDesc(a.Timestamp, b.Timestamp)
	})
	return sorted
}

func SortFeedbackWithUser(rows []models.FeedbackWithUser) []models.FeedbackWithUser {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b models.FeedbackWithUser) int {
		return compareDesc(a.Timestamp, b.Timestamp)
	})
	return sorted
}

func compareDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// joiner merges the feedback and users streams into joined rows. Updates from
// either side arm a quiet-window timer; one join runs when it fires, so a burst
// on both collections produces a single emission.
type joiner struct {
	debounce time.Duration
	emit     func([]models.FeedbackWithUser)

	mu        sync.Mutex
	feedbacks []models.Feedback
	users     []models.User
	hasF      bool
	hasU      bool
	timer     *time.Timer
	stopped   bool
	pending   sync.WaitGroup
	seq       uint64

	emitMu  sync.Mutex
	emitted uint64
}

func newJoiner(debounce time.Duration, emit func([]models.FeedbackWithUser)) *joiner {
	return &joiner{debounce: debounce, emit: emit}
}

func (j *joiner) setFeedbacks(feedbacks []models.Feedback) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.feedbacks = feedbacks
	j.hasF = true
	j.schedule()
}

func (j *joiner) setUsers(users []models.User) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.users = users
	j.hasU = true
	j.schedule()
}

// schedule requires j.mu.
func (j *joiner) schedule() {
	if j.stopped || !j.hasF || !j.hasU {
		return
	}
	if j.timer != nil && j.timer.Stop() {
		j.timer.Reset(j.debounce)
		return
	}
	j.pending.Add(1)
	j.timer = time.AfterFunc(j.debounce, j.fire)
}

func (j *joiner) fire() {
	defer j.pending.Done()
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.seq++
	seq := j.seq
	rows := Join(j.feedbacks, j.users)
	j.mu.Unlock()

	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if seq > j.emitted {
		j.emitted = seq
		j.emit(rows)
	}
}

// stop cancels a pending join and waits for a running one to finish.
func (j *joiner) stop() {
	j.mu.Lock()
	j.stopped = true
	if j.timer != nil && j.timer.Stop() {
		j.pending.Done()
	}
	j.timer = nil
	j.mu.Unlock()
	j.pending.Wait()
}

package handlers_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"friendbook/database"
	"friendbook/models"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// tick advances by a millisecond so stored timestamps keep creation order.
func (c *clock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fakeUsers struct {
	mu    sync.Mutex
	clock *clock
	byID  map[primitive.ObjectID]models.User
}

func newFakeUsers(c *clock) *fakeUsers {
	return &fakeUsers{clock: c, byID: make(map[primitive.ObjectID]models.User)}
}

func (s *fakeUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	ts := s.clock.tick()
	u.CreatedAt, u.UpdatedAt = ts, ts
	s.byID[u.ID] = *u
	return nil
}

func (s *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *fakeUsers) VerifyByToken(_ context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.byID {
		if u.EmailVerificationToken != nil && *u.EmailVerificationToken == token {
			u.IsVerified = true
			u.EmailVerificationToken = nil
			s.byID[id] = u
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *fakeUsers) UpdateImages(_ context.Context, id primitive.ObjectID, images models.ProfileImages) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if images.ProfilePicture != "" {
		u.ProfilePicture = images.ProfilePicture
	}
	if images.CoverPhoto != "" {
		u.CoverPhoto = images.CoverPhoto
	}
	s.byID[id] = u
	return &u, nil
}

func (s *fakeUsers) FindDisplays(_ context.Context, ids []primitive.ObjectID) (models.Displays, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	displays := make(models.Displays, len(ids))
	for _, id := range ids {
		if u, ok := s.byID[id]; ok {
			displays[id] = u.Display()
		}
	}
	return displays, nil
}

func (s *fakeUsers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type fakePending struct {
	mu      sync.Mutex
	clock   *clock
	byEmail map[string]models.PendingRegistration
}

func newFakePending(c *clock) *fakePending {
	return &fakePending{clock: c, byEmail: make(map[string]models.PendingRegistration)}
}

func (s *fakePending) Upsert(_ context.Context, p *models.PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = s.clock.Now()
	s.byEmail[p.Email] = *p
	return nil
}

func (s *fakePending) FindByEmail(_ context.Context, email string) (*models.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byEmail[email]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *fakePending) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byEmail, email)
	return nil
}

func (s *fakePending) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

type fakePosts struct {
	mu    sync.Mutex
	clock *clock
	// posts in insertion order
	posts []models.Post
}

func newFakePosts(c *clock) *fakePosts {
	return &fakePosts{clock: c}
}

func clonePost(p models.Post) models.Post {
	p.Media = append([]string{}, p.Media...)
	p.Likes = append([]primitive.ObjectID{}, p.Likes...)
	p.Comments = append([]models.Comment{}, p.Comments...)
	return p
}

func (s *fakePosts) index(id primitive.ObjectID) int {
	for i, p := range s.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *fakePosts) Create(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Media == nil {
		p.Media = []string{}
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	ts := s.clock.tick()
	p.CreatedAt, p.UpdatedAt = ts, ts
	s.posts = append(s.posts, clonePost(*p))
	return nil
}

func (s *fakePosts) List(_ context.Context) ([]models.Post, error) {
	return s.filter(func(models.Post) bool { return true }), nil
}

func (s *fakePosts) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool { return p.User == userID }), nil
}

// filter returns matching posts newest first.
func (s *fakePosts) filter(keep func(models.Post) bool) []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Post{}
	for i := len(s.posts) - 1; i >= 0; i-- {
		if keep(s.posts[i]) {
			out = append(out, clonePost(s.posts[i]))
		}
	}
	return out
}

func (s *fakePosts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, database.ErrNotFound
	}
	p := clonePost(s.posts[i])
	return &p, nil
}

func (s *fakePosts) mutate(id primitive.ObjectID, fn func(p *models.Post)) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return nil, database.ErrNotFound
	}
	fn(&s.posts[i])
	s.posts[i].UpdatedAt = s.clock.tick()
	p := clonePost(s.posts[i])
	return &p, nil
}

func (s *fakePosts) ToggleLike(_ context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		kept := []primitive.ObjectID{}
		for _, l := range p.Likes {
			if l != userID {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(p.Likes) {
			kept = append(kept, userID)
		}
		p.Likes = kept
	})
}

func (s *fakePosts) AddComment(_ context.Context, id primitive.ObjectID, c models.Comment) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		c.ID = primitive.NewObjectID()
		c.CreatedAt, c.UpdatedAt = s.clock.Now(), s.clock.Now()
		p.Comments = append([]models.Comment{c}, p.Comments...)
	})
}

func (s *fakePosts) Update(_ context.Context, id primitive.ObjectID, changes models.PostChanges) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		if changes.Content != "" {
			p.Content = changes.Content
		}
		if len(changes.Media) > 0 {
			p.Media = changes.Media
			p.MediaType = changes.MediaType
		}
	})
}

func (s *fakePosts) RemoveMedia(_ context.Context, id primitive.ObjectID, url string) (*models.Post, error) {
	return s.mutate(id, func(p *models.Post) {
		kept := []string{}
		for _, m := range p.Media {
			if m != url {
				kept = append(kept, m)
			}
		}
		p.Media = kept
	})
}

func (s *fakePosts) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return database.ErrNotFound
	}
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	return nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// lastCode returns the most recent OTP mailed to the address.
func (m *fakeMailer) lastCode(to string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].to == to {
			return strings.TrimPrefix(m.sent[i].body, "Your OTP is: "), nil
		}
	}
	return "", errors.New("no mail sent to " + to)
}

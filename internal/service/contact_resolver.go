package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
	"github.com/noah-isme/learnupon-exporter/pkg/learnupon"
)

// ContactCachePrefix namespaces resolved contacts in Redis.
const ContactCachePrefix = "learnupon:contact:"

type learnUponAPI interface {
	FindUserByEmail(ctx context.Context, email string) (*learnupon.User, error)
	ListEnrollments(ctx context.Context, userID int64) ([]learnupon.Enrollment, error)
}

type contactCache interface {
	Get(ctx context.Context, id string, dest interface{}) error
	Set(ctx context.Context, id string, value interface{}, ttl time.Duration) error
}

// Contact is what the resolver remembers about one learner: their LearnUpon
// user id (0 when they have no account) and enrollment ids by component.
type Contact struct {
	UserID      int64             `json:"user_id"`
	Enrollments map[string]string `json:"enrollments"`
}

type contactEntry struct {
	once    sync.Once
	contact Contact
	err     error
}

// ContactResolver maps a learner email and LearnUpon component to the
// LearnUpon enrollment id. Each email is resolved against the API at most once
// per run; it is safe for concurrent use by course tasks.
type ContactResolver struct {
	api     learnUponAPI
	cache   contactCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger

	mu       sync.Mutex
	contacts map[string]*contactEntry
}

// NewContactResolver constructs a resolver. cache and metrics may be nil.
func NewContactResolver(api learnUponAPI, cache contactCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *ContactResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactResolver{
		api:      api,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
		contacts: make(map[string]*contactEntry),
	}
}

// Resolve returns the external enrollment id, or "" when the learner has no
// LearnUpon account or no enrollment in componentID.
func (r *ContactResolver) Resolve(ctx context.Context, email, componentID string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return "", nil
	}

	r.mu.Lock()
	entry, ok := r.contacts[key]
	if !ok {
		entry = &contactEntry{}
		r.contacts[key] = entry
	}
	r.mu.Unlock()

	if ok {
		r.metrics.ObserveContactLookup("memory")
	}
	entry.once.Do(func() {
		entry.contact, entry.err = r.load(ctx, key)
	})
	if entry.err != nil {
		r.mu.Lock()
		if r.contacts[key] == entry {
			delete(r.contacts, key)
		}
		r.mu.Unlock()
		return "", entry.err
	}
	return entry.contact.Enrollments[componentID], nil
}

func (r *ContactResolver) load(ctx context.Context, email string) (Contact, error) {
	if r.cache != nil {
		var cached Contact
		err := r.cache.Get(ctx, email, &cached)
		switch {
		case err == nil:
			r.metrics.ObserveContactLookup("cache")
			return cached, nil
		case !errors.Is(err, appErrors.ErrCacheMiss):
			r.logger.Warn("contact cache read failed", zap.String("email", email), zap.Error(err))
		}
	}

	if r.api == nil {
		return Contact{}, appErrors.Wrap(nil, appErrors.ErrConfiguration, "learnupon api is not configured")
	}
	r.metrics.ObserveContactLookup("api")

	user, err := r.api.FindUserByEmail(ctx, email)
	if err != nil {
		return Contact{}, err
	}
	contact := Contact{Enrollments: map[string]string{}}
	if user != nil {
		contact.UserID = user.ID
		enrollments, err := r.api.ListEnrollments(ctx, user.ID)
		if err != nil {
			return Contact{}, err
		}
		for _, e := range enrollments {
			contact.Enrollments[strconv.FormatInt(e.CourseID, 10)] = strconv.FormatInt(e.ID, 10)
		}
	}
	r.logger.Debug("resolved contact",
		zap.String("email", email),
		zap.Int64("learnupon_user_id", contact.UserID),
		zap.Int("enrollments", len(contact.Enrollments)))

	if r.cache != nil {
		if err := r.cache.Set(ctx, email, contact, r.ttl); err != nil {
			r.logger.Warn("contact cache write failed", zap.String("email", email), zap.Error(err))
		}
	}
	return contact, nil
}
